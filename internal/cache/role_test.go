package cache

import (
	"context"
	"testing"
)

type fakeRoleSource struct {
	calls int
	roles map[string][]RoleEntry
}

func (f *fakeRoleSource) ListRolesForOrganization(ctx context.Context, orgID string) ([]RoleEntry, error) {
	f.calls++
	return f.roles[orgID], nil
}

func TestRoleCacheWarmThenResolve(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]RoleEntry{
		"org_1": {
			{Slug: "admin", ID: "role_1", Scope: OrganizationRole, OrgID: "org_1"},
			{Slug: "member", ID: "role_env", Scope: EnvironmentRole},
		},
	}}
	c := NewRoleCache(src, 10)

	entry, err := c.Resolve(context.Background(), "admin", "org_1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entry == nil || entry.ID != "role_1" {
		t.Fatalf("entry = %+v", entry)
	}

	// Environment-scoped roles resolve regardless of org.
	entry, err = c.Resolve(context.Background(), "member", "org_1")
	if err != nil || entry == nil || entry.ID != "role_env" {
		t.Fatalf("environment role resolve = %+v, %v", entry, err)
	}

	if src.calls != 1 {
		t.Errorf("expected exactly one warm call, got %d", src.calls)
	}
}

func TestRoleCacheWarmIsIdempotent(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]RoleEntry{"org_1": {}}}
	c := NewRoleCache(src, 10)

	if err := c.WarmFromOrganization(context.Background(), "org_1"); err != nil {
		t.Fatalf("WarmFromOrganization: %v", err)
	}
	if err := c.WarmFromOrganization(context.Background(), "org_1"); err != nil {
		t.Fatalf("WarmFromOrganization (second call): %v", err)
	}
	if src.calls != 1 {
		t.Errorf("expected warm to hit the source once, got %d calls", src.calls)
	}
}

func TestRoleCacheResolveUnknownSlugWithoutOrg(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]RoleEntry{}}
	c := NewRoleCache(src, 10)

	entry, err := c.Resolve(context.Background(), "ghost", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry for unresolved slug with no org context, got %+v", entry)
	}
}
