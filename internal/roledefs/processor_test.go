package roledefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/target"
)

type fakeTarget struct {
	permissions map[string]bool
	roles       map[string]*target.RoleResponse
	assigned    map[string][]string
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{permissions: map[string]bool{}, roles: map[string]*target.RoleResponse{}, assigned: map[string][]string{}}
}

func (f *fakeTarget) CreatePermission(ctx context.Context, slug, name string) error {
	f.permissions[slug] = true
	return nil
}

func (f *fakeTarget) CreateEnvironmentRole(ctx context.Context, slug, name string) (*target.RoleResponse, error) {
	resp := &target.RoleResponse{RoleID: "role_" + slug, Slug: slug, Name: name, Type: "environment"}
	f.roles[slug] = resp
	return resp, nil
}

func (f *fakeTarget) CreateOrganizationRole(ctx context.Context, orgID, slug, name string) (*target.RoleResponse, error) {
	resp := &target.RoleResponse{RoleID: "role_" + slug, Slug: slug, Name: name, Type: "organization"}
	f.roles[slug] = resp
	return resp, nil
}

func (f *fakeTarget) AssignPermissionsToRole(ctx context.Context, roleID string, permissions []string) error {
	f.assigned[roleID] = permissions
	return nil
}

type noopRoleSource struct{}

func (noopRoleSource) ListRolesForOrganization(ctx context.Context, orgID string) ([]cache.RoleEntry, error) {
	return nil, nil
}

func TestParseCSVReadsPermissionsAndScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.csv")
	content := "role_slug,role_name,role_type,permissions,org_id\n" +
		"admin,Admin,organization,\"[\"\"read\"\",\"\"write\"\"]\",org_1\n" +
		"viewer,Viewer,environment,read,\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	defs, err := ParseCSV(path)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].RoleType != TypeOrganization || len(defs[0].Permissions) != 2 {
		t.Errorf("defs[0] = %+v", defs[0])
	}
	if defs[1].RoleType != TypeEnvironment || defs[1].Permissions[0] != "read" {
		t.Errorf("defs[1] = %+v", defs[1])
	}
}

func TestProcessCreatesMissingRoleAndAssignsPermissions(t *testing.T) {
	tgt := newFakeTarget()
	roleCache := cache.NewRoleCache(noopRoleSource{}, 10)

	defs := []Definition{{RoleSlug: "admin", RoleName: "Admin", RoleType: TypeEnvironment, Permissions: []string{"read", "write"}}}
	results := Process(context.Background(), defs, roleCache, tgt)

	if len(results) != 1 || results[0].Outcome != OutcomeCreated {
		t.Fatalf("results = %+v", results)
	}
	if !tgt.permissions["read"] || !tgt.permissions["write"] {
		t.Errorf("expected both permissions ensured, got %+v", tgt.permissions)
	}
	if len(tgt.assigned["role_admin"]) != 2 {
		t.Errorf("expected permissions assigned to new role, got %+v", tgt.assigned)
	}
}

func TestProcessSkipsOrganizationRoleWithoutOrgReference(t *testing.T) {
	tgt := newFakeTarget()
	roleCache := cache.NewRoleCache(noopRoleSource{}, 10)

	defs := []Definition{{RoleSlug: "admin", RoleType: TypeOrganization}}
	results := Process(context.Background(), defs, roleCache, tgt)

	if results[0].Outcome != OutcomeSkipped || results[0].Err == nil {
		t.Errorf("results[0] = %+v", results[0])
	}
}
