// Package roledefs implements C10: a one-shot pass over a role-definitions
// CSV that ensures permissions and roles exist in the Target before an
// import run assigns them.
package roledefs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/target"
)

// RoleType is the scope a role-definitions row targets.
type RoleType string

const (
	TypeEnvironment RoleType = "environment"
	TypeOrganization RoleType = "organization"
)

// Outcome is the per-row disposition.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeExists   Outcome = "exists"
	OutcomeSkipped  Outcome = "skipped"
)

// Definition is one parsed role-definitions row.
type Definition struct {
	RoleSlug      string
	RoleName      string
	RoleType      RoleType
	Permissions   []string
	OrgID         string
	OrgExternalID string
}

// RowResult is what Process reports for one definition.
type RowResult struct {
	Definition        Definition
	Outcome           Outcome
	PermissionMismatch bool
	Missing           []string
	Extra             []string
	Err               error
}

// Target is the subset of Target API operations C10 needs.
type Target interface {
	CreatePermission(ctx context.Context, slug, name string) error
	CreateEnvironmentRole(ctx context.Context, slug, name string) (*target.RoleResponse, error)
	CreateOrganizationRole(ctx context.Context, orgID, slug, name string) (*target.RoleResponse, error)
	AssignPermissionsToRole(ctx context.Context, roleID string, permissions []string) error
}

// ParseCSV reads a role-definitions CSV into Definitions.
func ParseCSV(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("roledefs: open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("roledefs: read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var defs []Definition
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roledefs: parse row: %w", err)
		}
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		defs = append(defs, Definition{
			RoleSlug:      get("role_slug"),
			RoleName:      get("role_name"),
			RoleType:      RoleType(get("role_type")),
			Permissions:   parsePermissions(get("permissions")),
			OrgID:         get("org_id"),
			OrgExternalID: get("org_external_id"),
		})
	}
	return defs, nil
}

func parsePermissions(raw string) []string {
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(strings.TrimSpace(raw), "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Process runs C10 over defs, using roleCache to detect existing roles and
// target to create missing permissions/roles.
func Process(ctx context.Context, defs []Definition, roleCache *cache.RoleCache, target Target) []RowResult {
	results := make([]RowResult, 0, len(defs))
	for _, def := range defs {
		results = append(results, processOne(ctx, def, roleCache, target))
	}
	return results
}

func processOne(ctx context.Context, def Definition, roleCache *cache.RoleCache, target Target) RowResult {
	if def.RoleType == TypeOrganization && def.OrgID == "" && def.OrgExternalID == "" {
		return RowResult{Definition: def, Outcome: OutcomeSkipped, Err: fmt.Errorf("organization role %q requires org_id or org_external_id", def.RoleSlug)}
	}

	for _, perm := range def.Permissions {
		if err := target.CreatePermission(ctx, perm, perm); err != nil {
			return RowResult{Definition: def, Outcome: OutcomeSkipped, Err: fmt.Errorf("ensure permission %q: %w", perm, err)}
		}
	}

	existing, err := roleCache.Resolve(ctx, def.RoleSlug, def.OrgID)
	if err != nil {
		return RowResult{Definition: def, Outcome: OutcomeSkipped, Err: fmt.Errorf("role lookup: %w", err)}
	}

	if existing != nil {
		missing, extra := diffPermissions(existing.Permissions, def.Permissions)
		if len(missing) == 0 && len(extra) == 0 {
			return RowResult{Definition: def, Outcome: OutcomeExists}
		}
		return RowResult{Definition: def, Outcome: OutcomeExists, PermissionMismatch: true, Missing: missing, Extra: extra}
	}

	var roleID string
	if def.RoleType == TypeEnvironment {
		resp, err := target.CreateEnvironmentRole(ctx, def.RoleSlug, def.RoleName)
		if err != nil {
			return RowResult{Definition: def, Outcome: OutcomeSkipped, Err: fmt.Errorf("create environment role: %w", err)}
		}
		roleID = resp.RoleID
	} else {
		resp, err := target.CreateOrganizationRole(ctx, def.OrgID, def.RoleSlug, def.RoleName)
		if err != nil {
			return RowResult{Definition: def, Outcome: OutcomeSkipped, Err: fmt.Errorf("create organization role: %w", err)}
		}
		roleID = resp.RoleID
	}

	if len(def.Permissions) > 0 {
		if err := target.AssignPermissionsToRole(ctx, roleID, def.Permissions); err != nil {
			return RowResult{Definition: def, Outcome: OutcomeSkipped, Err: fmt.Errorf("assign permissions: %w", err)}
		}
	}

	return RowResult{Definition: def, Outcome: OutcomeCreated}
}

// diffPermissions returns the permissions def wants but existing lacks
// (missing) and the ones existing has but def doesn't (extra).
func diffPermissions(existing, wanted []string) (missing, extra []string) {
	existingSet := map[string]bool{}
	for _, p := range existing {
		existingSet[p] = true
	}
	wantedSet := map[string]bool{}
	for _, p := range wanted {
		wantedSet[p] = true
	}
	for _, p := range wanted {
		if !existingSet[p] {
			missing = append(missing, p)
		}
	}
	for _, p := range existing {
		if !wantedSet[p] {
			extra = append(extra, p)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
