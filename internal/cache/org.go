package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrExternalIDConflict is returned by an OrgSource's CreateOrg when the
// Target reports the external_id was assigned by a concurrent caller between
// the cache's miss and its create attempt (the S2 creation-race scenario).
var ErrExternalIDConflict = errors.New("cache: organization external_id already assigned")

// ErrAmbiguousOrgKey is returned by Resolve when both OrgID and
// OrgExternalID are supplied; §4.2 requires these to be mutually exclusive.
var ErrAmbiguousOrgKey = errors.New("cache: orgId and orgExternalId are mutually exclusive")

// OrgEntry is the Organization Cache Entry from the data model (§3).
type OrgEntry struct {
	ID         string
	ExternalID string
	Name       string
	CachedAt   time.Time
}

// OrgSource performs the actual Target lookups/creates an OrgCache miss
// triggers. A nil entry with a nil error means "not found".
type OrgSource interface {
	GetOrgByID(ctx context.Context, id string) (*OrgEntry, error)
	GetOrgByExternalID(ctx context.Context, externalID string) (*OrgEntry, error)
	CreateOrg(ctx context.Context, name, externalID string) (*OrgEntry, error)
}

// ResolveParams mirrors C2's resolve() contract.
type ResolveParams struct {
	OrgID           string
	OrgExternalID   string
	CreateIfMissing bool
	OrgName         string
}

// OrgCache implements C2.
type OrgCache struct {
	lru      *LRU[string, OrgEntry]
	group    singleflight.Group
	source   OrgSource
	dryRun   bool
}

// NewOrgCache builds an Organization Cache. capacity<=0 uses the §3 default
// of 10,000; ttl<=0 disables expiry.
func NewOrgCache(source OrgSource, capacity int, ttl time.Duration, dryRun bool) *OrgCache {
	return &OrgCache{
		lru:    NewLRU[string, OrgEntry](capacity, ttl),
		source: source,
		dryRun: dryRun,
	}
}

func idKey(id string) string  { return "id:" + id }
func extKey(ext string) string { return "ext:" + ext }

// Resolve implements C2's public contract.
func (c *OrgCache) Resolve(ctx context.Context, p ResolveParams) (string, error) {
	if p.OrgID != "" && p.OrgExternalID != "" {
		return "", ErrAmbiguousOrgKey
	}
	if p.OrgID == "" && p.OrgExternalID == "" {
		return "", nil
	}

	var cacheKey string
	if p.OrgID != "" {
		cacheKey = idKey(p.OrgID)
	} else {
		cacheKey = extKey(p.OrgExternalID)
	}

	if entry, ok := c.lru.Get(cacheKey); ok {
		return entry.ID, nil
	}

	// Coalesce concurrent lookups for the same key into one underlying
	// operation; every caller shares the winner's result.
	result, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		return c.resolveMiss(ctx, p)
	})
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return result.(string), nil
}

func (c *OrgCache) resolveMiss(ctx context.Context, p ResolveParams) (interface{}, error) {
	if c.dryRun {
		return c.resolveDryRun(p), nil
	}

	var (
		entry *OrgEntry
		err   error
	)
	if p.OrgID != "" {
		entry, err = c.source.GetOrgByID(ctx, p.OrgID)
	} else {
		entry, err = c.source.GetOrgByExternalID(ctx, p.OrgExternalID)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: org lookup: %w", err)
	}

	if entry == nil {
		if p.OrgID != "" || !p.CreateIfMissing || p.OrgName == "" {
			return nil, nil
		}
		entry, err = c.createWithRaceRetry(ctx, p.OrgName, p.OrgExternalID)
		if err != nil {
			return nil, err
		}
	}

	c.store(*entry)
	return entry.ID, nil
}

// createWithRaceRetry implements §4.2's race-on-create rule: if CreateOrg
// reports the external_id was claimed concurrently, retry the GET up to 3
// times with 500ms*attempt backoff before giving up.
func (c *OrgCache) createWithRaceRetry(ctx context.Context, name, externalID string) (*OrgEntry, error) {
	entry, err := c.source.CreateOrg(ctx, name, externalID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrExternalIDConflict) {
		return nil, fmt.Errorf("cache: create org: %w", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		select {
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		entry, lookupErr := c.source.GetOrgByExternalID(ctx, externalID)
		if lookupErr != nil {
			return nil, fmt.Errorf("cache: post-race lookup: %w", lookupErr)
		}
		if entry != nil {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("cache: org external_id %q still unresolved after creation race", externalID)
}

func (c *OrgCache) resolveDryRun(p ResolveParams) string {
	if p.OrgID != "" {
		return p.OrgID
	}
	return "org_dryrun_" + p.OrgExternalID
}

func (c *OrgCache) store(entry OrgEntry) {
	entry.CachedAt = time.Now()
	if entry.ID != "" {
		c.lru.Set(idKey(entry.ID), entry)
	}
	if entry.ExternalID != "" {
		c.lru.Set(extKey(entry.ExternalID), entry)
	}
}

// Stats returns cache hit/miss/eviction statistics.
func (c *OrgCache) Stats() Stats { return c.lru.Stats() }

// Snapshot returns every cached entry for serialization.
func (c *OrgCache) Snapshot() map[string]OrgEntry { return c.lru.Snapshot() }

// MergeFrom add-only merges entries into the cache; keys already held keep
// their current entry.
func (c *OrgCache) MergeFrom(entries map[string]OrgEntry) { c.lru.MergeFrom(entries) }
