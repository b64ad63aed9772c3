// Package rowprocessor implements C4: turning one parsed CSV row into
// Target-API side effects, with row-local error recovery.
package rowprocessor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/csvrow"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errorlog"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/metrics"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/ratelimit"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/target"
)

// Context holds the per-job settings and shared component handles a row
// processor needs. It is built once per worker and reused across rows.
type Context struct {
	// OrgID is set in single-org mode; empty in multi-org/user-only mode.
	OrgID             string
	RequireMembership bool
	DryRun            bool
	UserRoleMapping   map[string][]string

	RateLimiter *ratelimit.Limiter
	OrgCache    *cache.OrgCache
	RoleCache   *cache.RoleCache
	Target      *target.Client
	ErrorLog    *errorlog.Writer
}

// Result is the per-row outcome the chunk processor folds into its counters.
type Result struct {
	Success              bool
	UserCreated          bool
	MembershipCreated    bool
	DuplicateUser        bool
	DuplicateMembership  bool
	RolesAssigned        int
	RoleAssignmentFailed int
	Warnings             []string
}

// Process runs the full pipeline from §4.4 for one row. It never returns a
// Go error for row-local failures: those are written to the error log and
// reflected in Result.Success=false. A non-nil error return means the error
// log write itself failed or the context was cancelled, which the chunk
// processor treats as fatal for the chunk.
func Process(ctx context.Context, row csvrow.Row, pctx *Context) (Result, error) {
	if strings.TrimSpace(row.Email) == "" {
		return fail(ctx, pctx, row, errorlog.TypeUserCreate, "Missing required email", 0, nil)
	}

	metadata, err := row.ParseMetadata()
	if err != nil {
		return fail(ctx, pctx, row, errorlog.TypeUserCreate, err.Error(), 0, nil)
	}

	if row.OrgID != "" && row.OrgExternalID != "" {
		return fail(ctx, pctx, row, errorlog.TypeOrgResolution, "org_id and org_external_id are mutually exclusive", 0, nil)
	}

	roleSlugs := row.MergedRoleSlugs(pctx.UserRoleMapping)

	orgID, err := resolveOrg(ctx, row, pctx)
	if err != nil {
		return fail(ctx, pctx, row, errorlog.TypeOrgResolution, err.Error(), 0, roleSlugs)
	}
	if orgID == "" && pctx.OrgID == "" && (row.OrgID != "" || row.OrgExternalID != "") {
		return fail(ctx, pctx, row, errorlog.TypeOrgResolution, "organization could not be resolved", 0, roleSlugs)
	}
	if pctx.OrgID != "" {
		orgID = pctx.OrgID
	}

	userID, dup, err := createUser(ctx, row, metadata, pctx)
	if err != nil {
		httpStatus, code, reqID := statusOf(err)
		return failWith(ctx, pctx, row, errorlog.TypeUserCreate, err.Error(), httpStatus, code, reqID, "", orgID, roleSlugs)
	}

	result := Result{Success: true, UserCreated: !dup, DuplicateUser: dup}

	if orgID != "" {
		membershipDup, merr := createMembership(ctx, pctx, userID, orgID)
		if merr != nil {
			httpStatus, code, reqID := statusOf(merr)
			if pctx.RequireMembership {
				_ = bestEffortDeleteUser(ctx, pctx, userID)
				return failWith(ctx, pctx, row, errorlog.TypeMembershipCreate, merr.Error(), httpStatus, code, reqID, userID, orgID, roleSlugs)
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("membership not created: %v", merr))
			_ = writeError(ctx, pctx, row, errorlog.TypeMembershipCreate, merr.Error(), httpStatus, code, reqID, userID, orgID, roleSlugs)
		} else {
			result.MembershipCreated = !membershipDup
			result.DuplicateMembership = membershipDup
		}
	}

	if orgID != "" {
		for _, slug := range roleSlugs {
			if err := assignRole(ctx, pctx, userID, orgID, slug); err != nil {
				result.RoleAssignmentFailed++
				httpStatus, code, reqID := statusOf(err)
				_ = writeError(ctx, pctx, row, errorlog.TypeRoleAssignment, err.Error(), httpStatus, code, reqID, userID, orgID, roleSlugs)
				continue
			}
			result.RolesAssigned++
		}
	}

	return result, nil
}

func acquire(ctx context.Context, limiter *ratelimit.Limiter) error {
	start := time.Now()
	defer func() { metrics.RateLimiterWaitSeconds.Observe(time.Since(start).Seconds()) }()
	return limiter.Acquire(ctx)
}

func resolveOrg(ctx context.Context, row csvrow.Row, pctx *Context) (string, error) {
	if pctx.OrgID != "" {
		return pctx.OrgID, nil
	}
	if row.OrgID == "" && row.OrgExternalID == "" {
		return "", nil
	}
	return pctx.OrgCache.Resolve(ctx, cache.ResolveParams{
		OrgID:           row.OrgID,
		OrgExternalID:   row.OrgExternalID,
		CreateIfMissing: row.OrgName != "",
		OrgName:         row.OrgName,
	})
}

func createUser(ctx context.Context, row csvrow.Row, metadata map[string]interface{}, pctx *Context) (userID string, duplicate bool, err error) {
	if pctx.DryRun {
		return "user_dryrun_" + row.Email, false, nil
	}

	if err := acquire(ctx, pctx.RateLimiter); err != nil {
		return "", false, fmt.Errorf("rate limiter: %w", err)
	}

	emailVerified, set := row.ParseEmailVerified()
	req := target.CreateUserRequest{
		Email:            row.Email,
		FirstName:        row.FirstName,
		LastName:         row.LastName,
		Password:         row.Password,
		PasswordHash:     row.PasswordHash,
		PasswordHashType: row.PasswordHashType,
		ExternalID:       row.ExternalID,
		Metadata:         metadata,
	}
	if set {
		req.EmailVerified = &emailVerified
	}

	resp, err := pctx.Target.CreateUser(ctx, req)
	if err != nil {
		if isAlreadyExists(err) {
			return "", true, nil
		}
		return "", false, err
	}
	return resp.UserID, false, nil
}

func createMembership(ctx context.Context, pctx *Context, userID, orgID string) (duplicate bool, err error) {
	if pctx.DryRun {
		return false, nil
	}
	if err := acquire(ctx, pctx.RateLimiter); err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}
	err = pctx.Target.CreateMembership(ctx, target.CreateMembershipRequest{UserID: userID, OrganizationID: orgID})
	if err != nil && isAlreadyExists(err) {
		return true, nil
	}
	return false, err
}

func assignRole(ctx context.Context, pctx *Context, userID, orgID, slug string) error {
	role, err := pctx.RoleCache.Resolve(ctx, slug, orgID)
	if err != nil {
		return fmt.Errorf("role lookup for %q: %w", slug, err)
	}
	if role == nil {
		return fmt.Errorf("role %q not found for organization %s", slug, orgID)
	}
	if pctx.DryRun {
		return nil
	}
	if err := acquire(ctx, pctx.RateLimiter); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return pctx.Target.AssignRoleToMembership(ctx, userID, orgID, role.ID)
}

func bestEffortDeleteUser(ctx context.Context, pctx *Context, userID string) error {
	if pctx.DryRun || userID == "" {
		return nil
	}
	deleteCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return pctx.Target.DeleteUser(deleteCtx, userID)
}

func isAlreadyExists(err error) bool {
	apiErr, ok := err.(*target.APIError)
	if !ok {
		return false
	}
	return apiErr.StatusCode == 409 && strings.Contains(strings.ToLower(apiErr.Message), "already exist")
}

func statusOf(err error) (status int, code string, requestID string) {
	if apiErr, ok := err.(*target.APIError); ok {
		return apiErr.StatusCode, apiErr.Code, apiErr.RequestID
	}
	return 0, "", ""
}

func fail(ctx context.Context, pctx *Context, row csvrow.Row, errType errorlog.ErrorType, message string, status int, roleSlugs []string) (Result, error) {
	return failWith(ctx, pctx, row, errType, message, status, "", "", "", "", roleSlugs)
}

func failWith(ctx context.Context, pctx *Context, row csvrow.Row, errType errorlog.ErrorType, message string, status int, code, requestID, userID, orgID string, roleSlugs []string) (Result, error) {
	if err := writeError(ctx, pctx, row, errType, message, status, code, requestID, userID, orgID, roleSlugs); err != nil {
		return Result{}, err
	}
	return Result{Success: false}, nil
}

func writeError(ctx context.Context, pctx *Context, row csvrow.Row, errType errorlog.ErrorType, message string, status int, code, requestID, userID, orgID string, roleSlugs []string) error {
	raw := map[string]string{
		"email":              row.Email,
		"first_name":         row.FirstName,
		"last_name":          row.LastName,
		"email_verified":     row.EmailVerified,
		"external_id":        row.ExternalID,
		"password":           row.Password,
		"password_hash":      row.PasswordHash,
		"password_hash_type": row.PasswordHashType,
		"metadata":           row.Metadata,
		"org_id":             row.OrgID,
		"org_external_id":    row.OrgExternalID,
		"org_name":           row.OrgName,
		"role_slugs":         row.RoleSlugs,
	}
	for k, v := range row.Extra {
		raw[k] = v
	}

	return pctx.ErrorLog.Write(ctx, errorlog.Record{
		RecordNumber:    row.RecordNumber,
		Email:           row.Email,
		UserID:          userID,
		ErrorType:       errType,
		ErrorMessage:    message,
		HTTPStatus:      status,
		WorkosCode:      code,
		WorkosRequestID: requestID,
		Timestamp:       time.Now().UTC(),
		RawRow:          raw,
		OrgID:           orgID,
		OrgExternalID:   row.OrgExternalID,
		RoleSlugs:       roleSlugs,
	})
}
