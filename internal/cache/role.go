package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// RoleScope discriminates the Role Cache Entry variant (§9's "dynamic cache
// values → sum type" note), modeled here as a struct with a Kind
// discriminant rather than an interface, since both variants share every
// field a role needs.
type RoleScope string

const (
	EnvironmentRole RoleScope = "EnvironmentRole"
	OrganizationRole RoleScope = "OrganizationRole"
)

// RoleEntry is the Role Cache Entry from the data model (§3).
type RoleEntry struct {
	Slug        string
	ID          string
	Name        string
	Permissions []string
	Scope       RoleScope
	OrgID       string
	CachedAt    time.Time
}

// RoleSource lists every role defined for an organization, used to warm the
// cache the first time a row references that organization.
type RoleSource interface {
	ListRolesForOrganization(ctx context.Context, orgID string) ([]RoleEntry, error)
}

// RoleCache implements C3.
type RoleCache struct {
	lru    *LRU[string, RoleEntry]
	group  singleflight.Group
	source RoleSource

	warmedMu sync.Mutex
	warmed   map[string]bool
}

// NewRoleCache builds a Role Cache. capacity<=0 uses the §3 default.
func NewRoleCache(source RoleSource, capacity int) *RoleCache {
	return &RoleCache{
		lru:    NewLRU[string, RoleEntry](capacity, 0),
		source: source,
		warmed: make(map[string]bool),
	}
}

func envKey(slug string) string           { return "env:" + slug }
func orgRoleKey(orgID, slug string) string { return "org:" + orgID + ":" + slug }

// Resolve implements C3's resolution algorithm: cache hit, else (given an
// org context) warm from the Target's "list roles for organization" and
// re-check.
func (c *RoleCache) Resolve(ctx context.Context, slug string, orgID string) (*RoleEntry, error) {
	if orgID != "" {
		if e, ok := c.lru.Get(orgRoleKey(orgID, slug)); ok {
			return &e, nil
		}
	}
	if e, ok := c.lru.Get(envKey(slug)); ok {
		return &e, nil
	}

	if orgID == "" {
		return nil, nil
	}

	if err := c.WarmFromOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	if e, ok := c.lru.Get(orgRoleKey(orgID, slug)); ok {
		return &e, nil
	}
	if e, ok := c.lru.Get(envKey(slug)); ok {
		return &e, nil
	}
	return nil, nil
}

// WarmFromOrganization lists every role for orgID and inserts them. It is
// idempotent and cheap after the first call per org: later calls are a
// no-op even without a Target round trip.
func (c *RoleCache) WarmFromOrganization(ctx context.Context, orgID string) error {
	c.warmedMu.Lock()
	if c.warmed[orgID] {
		c.warmedMu.Unlock()
		return nil
	}
	c.warmedMu.Unlock()

	_, err, _ := c.group.Do("warm:"+orgID, func() (interface{}, error) {
		roles, err := c.source.ListRolesForOrganization(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("cache: warm roles for org %s: %w", orgID, err)
		}
		for _, r := range roles {
			r.CachedAt = time.Now()
			if r.Scope == EnvironmentRole {
				c.lru.Set(envKey(r.Slug), r)
			} else {
				c.lru.Set(orgRoleKey(orgID, r.Slug), r)
			}
		}
		c.warmedMu.Lock()
		c.warmed[orgID] = true
		c.warmedMu.Unlock()
		return nil, nil
	})
	return err
}

// Stats returns cache hit/miss/eviction statistics.
func (c *RoleCache) Stats() Stats { return c.lru.Stats() }

// Snapshot returns every cached entry for serialization.
func (c *RoleCache) Snapshot() map[string]RoleEntry { return c.lru.Snapshot() }

// MergeFrom add-only merges entries into the cache; keys already held keep
// their current entry.
func (c *RoleCache) MergeFrom(entries map[string]RoleEntry) { c.lru.MergeFrom(entries) }
