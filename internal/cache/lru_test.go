package cache

import (
	"testing"
	"time"
)

func TestLRUEviction(t *testing.T) {
	l := NewLRU[string, int](2, 0)
	l.Set("a", 1)
	l.Set("b", 2)
	l.Set("c", 3) // evicts "a", the least-recently-used

	if _, ok := l.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if v, ok := l.Get("b"); !ok || v != 2 {
		t.Errorf("expected b=2, got %v, %v", v, ok)
	}
	if got := l.Stats().Evictions; got != 1 {
		t.Errorf("evictions = %d, want 1", got)
	}
}

func TestLRURecencyProtectsFromEviction(t *testing.T) {
	l := NewLRU[string, int](2, 0)
	l.Set("a", 1)
	l.Set("b", 2)
	l.Get("a") // promote a to most-recently-used
	l.Set("c", 3) // should evict b, not a

	if _, ok := l.Get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if _, ok := l.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	l := NewLRU[string, int](10, time.Millisecond)
	l.Set("a", 1)
	time.Sleep(5 * time.Millisecond)

	if _, ok := l.Get("a"); ok {
		t.Error("expected expired entry to be evicted on access")
	}
}

func TestLRUStatsHitRate(t *testing.T) {
	l := NewLRU[string, int](10, 0)
	l.Set("a", 1)
	l.Get("a")
	l.Get("missing")

	stats := l.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("hit rate = %f, want 0.5", stats.HitRate)
	}
}

func TestLRUMergeFromIsAddOnly(t *testing.T) {
	l := NewLRU[string, int](10, 0)
	l.Set("a", 1)

	l.MergeFrom(map[string]int{"a": 999, "b": 2})

	if v, _ := l.Get("a"); v != 1 {
		t.Errorf("expected existing entry to win merge, got %d", v)
	}
	if v, ok := l.Get("b"); !ok || v != 2 {
		t.Errorf("expected new entry merged, got %v, %v", v, ok)
	}
}
