package errorlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Writer is the single owner of a job's errors.jsonl file. Workers never open
// the file themselves; they send records over Write, which are serialized
// through one internal goroutine. This sidesteps relying on POSIX atomic
// line-append semantics across concurrent writers, per the checkpoint/error
// log design notes.
type Writer struct {
	file *os.File
	enc  *json.Encoder
	reqs chan writeRequest
	wg   sync.WaitGroup
}

type writeRequest struct {
	record Record
	result chan error
}

// Open creates (or appends to, on resume) the job's error log and starts its
// writer goroutine.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("errorlog: open %s: %w", path, err)
	}

	w := &Writer{
		file: f,
		enc:  json.NewEncoder(f),
		reqs: make(chan writeRequest),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Writer) run() {
	defer w.wg.Done()
	for req := range w.reqs {
		req.result <- w.enc.Encode(req.record)
	}
}

// Write appends one record, blocking until it has been serialized to disk or
// ctx is cancelled.
func (w *Writer) Write(ctx context.Context, rec Record) error {
	result := make(chan error, 1)
	select {
	case w.reqs <- writeRequest{record: rec, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting writes, drains the goroutine, and closes the
// underlying file. Safe to call once per Writer.
func (w *Writer) Close() error {
	close(w.reqs)
	w.wg.Wait()
	return w.file.Close()
}
