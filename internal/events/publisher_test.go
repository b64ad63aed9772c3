package events

import (
	"context"
	"testing"
)

func TestNewWithNoBrokersReturnsNil(t *testing.T) {
	p := New(nil, "imports", nil)
	if p != nil {
		t.Fatalf("expected nil publisher with no brokers, got %+v", p)
	}
}

func TestNilPublisherPublishAndCloseAreNoops(t *testing.T) {
	var p *Publisher
	p.Publish(context.Background(), Event{Type: JobStarted, JobID: "job-1"})
	if err := p.Close(); err != nil {
		t.Errorf("Close on nil publisher: %v", err)
	}
}
