package target

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/breaker"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/client"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/metrics"
)

// Client is the concrete HTTP implementation of the Target API operations
// from §6. Every method issues exactly one logical Target call (retried per
// RetryConfig); callers are responsible for rate-limiter acquisition before
// calling in (the row processor does this explicitly so the limiter wait is
// observable separately from the HTTP call itself).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	transport  *breaker.Transport
	retryCfg   client.RetryConfig
}

// New creates a Target client. requestTimeout governs each individual HTTP
// round trip; retryCfg governs the retry/backoff policy across attempts.
func New(baseURL, apiKey string, requestTimeout time.Duration, retryCfg client.RetryConfig) *Client {
	if requestTimeout == 0 {
		requestTimeout = 30 * time.Second
	}
	transport := breaker.NewTransport("target-api", nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		transport: transport,
		retryCfg:  retryCfg,
	}
}

// BreakerState reports the Target breaker's current state, for the
// circuit_breaker_state gauge.
func (c *Client) BreakerState() gobreaker.State {
	return c.transport.State()
}

func (c *Client) do(ctx context.Context, operation, method, path string, body interface{}, out interface{}) (*http.Response, error) {
	start := time.Now()
	resp, err := c.doUninstrumented(ctx, method, path, body, out)
	status := "error"
	if resp != nil {
		status = fmt.Sprintf("%d", resp.StatusCode)
	}
	metrics.RecordTargetCall(operation, status, time.Since(start).Seconds())
	return resp, err
}

func (c *Client) doUninstrumented(ctx context.Context, method, path string, body interface{}, out interface{}) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("target: marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("target: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := client.DoWithRetry(ctx, c.httpClient, req, c.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("target: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp, decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("target: decode response: %w", err)
		}
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Code      string `json:"code"`
		RequestID string `json:"requestId"`
		Message   string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Code:       body.Code,
		RequestID:  body.RequestID,
		Message:    body.Message,
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("target API returned status %d", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusConflict && strings.Contains(strings.ToLower(apiErr.Message+apiErr.Code), "external_id") {
		return fmt.Errorf("%w: %s", cache.ErrExternalIDConflict, apiErr.Message)
	}
	return apiErr
}

// GetOrgByID implements cache.OrgSource.
func (c *Client) GetOrgByID(ctx context.Context, id string) (*cache.OrgEntry, error) {
	var resp OrgResponse
	_, err := c.do(ctx, "get_org_by_id", http.MethodGet, "/v1/organizations/"+id, nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &cache.OrgEntry{ID: resp.OrgID, ExternalID: resp.ExternalID, Name: resp.Name}, nil
}

// GetOrgByExternalID implements cache.OrgSource.
func (c *Client) GetOrgByExternalID(ctx context.Context, externalID string) (*cache.OrgEntry, error) {
	var resp OrgResponse
	_, err := c.do(ctx, "get_org_by_external_id", http.MethodGet, "/v1/organizations?external_id="+externalID, nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if resp.OrgID == "" {
		return nil, nil
	}
	return &cache.OrgEntry{ID: resp.OrgID, ExternalID: resp.ExternalID, Name: resp.Name}, nil
}

// CreateOrg implements cache.OrgSource.
func (c *Client) CreateOrg(ctx context.Context, name, externalID string) (*cache.OrgEntry, error) {
	var resp OrgResponse
	_, err := c.do(ctx, "create_org", http.MethodPost, "/v1/organizations", CreateOrgRequest{Name: name, ExternalID: externalID}, &resp)
	if err != nil {
		return nil, err
	}
	return &cache.OrgEntry{ID: resp.OrgID, ExternalID: resp.ExternalID, Name: resp.Name}, nil
}

// ListRolesForOrganization implements cache.RoleSource.
func (c *Client) ListRolesForOrganization(ctx context.Context, orgID string) ([]cache.RoleEntry, error) {
	var resp []RoleResponse
	_, err := c.do(ctx, "list_roles_for_organization", http.MethodGet, "/v1/organizations/"+orgID+"/roles", nil, &resp)
	if err != nil {
		return nil, err
	}

	entries := make([]cache.RoleEntry, 0, len(resp))
	for _, r := range resp {
		scope := cache.OrganizationRole
		if r.Type == "environment" {
			scope = cache.EnvironmentRole
		}
		entries = append(entries, cache.RoleEntry{
			Slug:        r.Slug,
			ID:          r.RoleID,
			Name:        r.Name,
			Permissions: r.Permissions,
			Scope:       scope,
			OrgID:       orgID,
		})
	}
	return entries, nil
}

// CreateUser issues "POST create user".
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResponse, error) {
	var resp CreateUserResponse
	if _, err := c.do(ctx, "create_user", http.MethodPost, "/v1/users", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateMembership issues "POST create organization-membership".
func (c *Client) CreateMembership(ctx context.Context, req CreateMembershipRequest) error {
	_, err := c.do(ctx, "create_membership", http.MethodPost, "/v1/organization_memberships", req, nil)
	return err
}

// DeleteUser issues best-effort "DELETE user" cleanup.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.do(ctx, "delete_user", http.MethodDelete, "/v1/users/"+userID, nil, nil)
	return err
}

// CreatePermission issues "POST create permission".
func (c *Client) CreatePermission(ctx context.Context, slug, name string) error {
	_, err := c.do(ctx, "create_permission", http.MethodPost, "/v1/permissions", CreatePermissionRequest{Slug: slug, Name: name}, nil)
	if err != nil && isConflict(err) {
		return nil // already exists: idempotent from the caller's perspective
	}
	return err
}

// CreateEnvironmentRole issues "POST create environment-role".
func (c *Client) CreateEnvironmentRole(ctx context.Context, slug, name string) (*RoleResponse, error) {
	var resp RoleResponse
	if _, err := c.do(ctx, "create_environment_role", http.MethodPost, "/v1/roles/environment", CreateRoleRequest{Slug: slug, Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateOrganizationRole issues "POST create organization-role".
func (c *Client) CreateOrganizationRole(ctx context.Context, orgID, slug, name string) (*RoleResponse, error) {
	var resp RoleResponse
	req := CreateRoleRequest{Slug: slug, Name: name, OrganizationID: orgID}
	if _, err := c.do(ctx, "create_organization_role", http.MethodPost, "/v1/roles/organization", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AssignPermissionsToRole issues "POST assign-permissions-to-role".
func (c *Client) AssignPermissionsToRole(ctx context.Context, roleID string, permissions []string) error {
	_, err := c.do(ctx, "assign_permissions_to_role", http.MethodPost, "/v1/roles/"+roleID+"/permissions", AssignPermissionsRequest{RoleID: roleID, Permissions: permissions}, nil)
	return err
}

// AssignRoleToMembership issues "POST assign-role-to-membership".
func (c *Client) AssignRoleToMembership(ctx context.Context, userID, orgID, roleID string) error {
	req := AssignRoleRequest{MembershipUserID: userID, OrganizationID: orgID, RoleID: roleID}
	_, err := c.do(ctx, "assign_role_to_membership", http.MethodPost, "/v1/organization_memberships/roles", req, nil)
	return err
}

func isNotFound(err error) bool {
	var apiErr *APIError
	if asAPIError(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

func isConflict(err error) bool {
	var apiErr *APIError
	if asAPIError(err, &apiErr) {
		return apiErr.StatusCode == http.StatusConflict
	}
	return false
}

func asAPIError(err error, target **APIError) bool {
	if apiErr, ok := err.(*APIError); ok {
		*target = apiErr
		return true
	}
	return false
}
