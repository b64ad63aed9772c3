package errorlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// StreamFunc is invoked once per record read from the log, in file order.
// Returning an error stops the stream and is propagated to the caller of
// Stream, except io.EOF, which stops the stream and makes Stream return nil.
type StreamFunc func(Record) error

// Stream reads a job's errors.jsonl line by line, holding at most one record
// in memory at a time, matching the analyzer's O(1)-memory streaming target.
func Stream(path string, fn StreamFunc) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("errorlog: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("errorlog: %s:%d: %w", path, lineNo, err)
		}
		if err := fn(rec); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}
