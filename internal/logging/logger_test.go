package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewDefaultsToInfoOnUnrecognizedLevel(t *testing.T) {
	logger, err := New(Config{Level: "not-a-level"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info level enabled by default")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level disabled by default")
	}
}

func TestNewRespectsExplicitLevel(t *testing.T) {
	logger, err := New(Config{Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level enabled")
	}
}

func TestChunkFieldsExtendsJobFields(t *testing.T) {
	fields := ChunkFields("job-1", 3, 2)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d: %+v", len(fields), fields)
	}
	if fields[0].Key != "job_id" || fields[1].Key != "chunk_id" || fields[2].Key != "worker_id" {
		t.Errorf("fields = %+v", fields)
	}
}
