package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeOrgSource struct {
	byID         map[string]*OrgEntry
	byExt        map[string]*OrgEntry
	creates      int32
	created      map[string]*OrgEntry
	conflictOnce bool
	extLookups   int
}

func newFakeOrgSource() *fakeOrgSource {
	return &fakeOrgSource{byID: map[string]*OrgEntry{}, byExt: map[string]*OrgEntry{}, created: map[string]*OrgEntry{}}
}

func (f *fakeOrgSource) GetOrgByID(ctx context.Context, id string) (*OrgEntry, error) {
	return f.byID[id], nil
}

func (f *fakeOrgSource) GetOrgByExternalID(ctx context.Context, externalID string) (*OrgEntry, error) {
	f.extLookups++
	// The concurrent winner's org only becomes visible starting with the
	// second lookup, simulating the post-conflict retry finding it.
	if f.extLookups > 1 {
		return f.byExt[externalID], nil
	}
	return nil, nil
}

func (f *fakeOrgSource) CreateOrg(ctx context.Context, name, externalID string) (*OrgEntry, error) {
	atomic.AddInt32(&f.creates, 1)
	if f.conflictOnce {
		f.conflictOnce = false
		return nil, ErrExternalIDConflict
	}
	entry := &OrgEntry{ID: "org_new", ExternalID: externalID, Name: name}
	f.byExt[externalID] = entry
	return entry, nil
}

func TestOrgCacheResolveHitAndMiss(t *testing.T) {
	src := newFakeOrgSource()
	src.byID["org_1"] = &OrgEntry{ID: "org_1", Name: "Acme"}
	c := NewOrgCache(src, 10, 0, false)

	id, err := c.Resolve(context.Background(), ResolveParams{OrgID: "org_1"})
	if err != nil || id != "org_1" {
		t.Fatalf("Resolve = %q, %v", id, err)
	}
	if c.Stats().Misses != 1 {
		t.Errorf("expected one miss for the cold lookup, got %+v", c.Stats())
	}

	id, err = c.Resolve(context.Background(), ResolveParams{OrgID: "org_1"})
	if err != nil || id != "org_1" {
		t.Fatalf("Resolve (cached) = %q, %v", id, err)
	}
	if c.Stats().Hits != 1 {
		t.Errorf("expected one hit on the second lookup, got %+v", c.Stats())
	}
}

func TestOrgCacheAmbiguousKey(t *testing.T) {
	c := NewOrgCache(newFakeOrgSource(), 10, 0, false)
	_, err := c.Resolve(context.Background(), ResolveParams{OrgID: "org_1", OrgExternalID: "ext_1"})
	if !errors.Is(err, ErrAmbiguousOrgKey) {
		t.Fatalf("expected ErrAmbiguousOrgKey, got %v", err)
	}
}

func TestOrgCacheCreateIfMissing(t *testing.T) {
	src := newFakeOrgSource()
	c := NewOrgCache(src, 10, 0, false)

	id, err := c.Resolve(context.Background(), ResolveParams{OrgExternalID: "ext_1", CreateIfMissing: true, OrgName: "Acme"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != "org_new" {
		t.Errorf("id = %q, want org_new", id)
	}
	if src.creates != 1 {
		t.Errorf("creates = %d, want 1", src.creates)
	}
}

func TestOrgCacheDryRunNeverCallsSource(t *testing.T) {
	src := newFakeOrgSource()
	c := NewOrgCache(src, 10, 0, true)

	id, err := c.Resolve(context.Background(), ResolveParams{OrgExternalID: "ext_1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != "org_dryrun_ext_1" {
		t.Errorf("id = %q", id)
	}
	if src.creates != 0 {
		t.Errorf("dry run should never call CreateOrg, got %d calls", src.creates)
	}
}

func TestOrgCacheCreateRaceRetriesThenSucceeds(t *testing.T) {
	src := newFakeOrgSource()
	src.conflictOnce = true
	src.byExt["ext_1"] = &OrgEntry{ID: "org_winner", ExternalID: "ext_1"}

	c := NewOrgCache(src, 10, 0, false)
	id, err := c.Resolve(context.Background(), ResolveParams{OrgExternalID: "ext_1", CreateIfMissing: true, OrgName: "Acme"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id == "" {
		t.Error("expected a resolved org id after the race retry")
	}
}
