// Package target is the API client for the destination identity-management
// service (the Target) the engine drives. It implements the abstract
// operations enumerated in §6 against a concrete REST vendor shape, and
// satisfies the cache package's OrgSource/RoleSource interfaces so C2/C3
// can call straight through it.
package target

// CreateUserRequest is the payload for "POST create user".
type CreateUserRequest struct {
	Email            string                 `json:"email"`
	FirstName        string                 `json:"firstName,omitempty"`
	LastName         string                 `json:"lastName,omitempty"`
	Password         string                 `json:"password,omitempty"`
	PasswordHash     string                 `json:"passwordHash,omitempty"`
	PasswordHashType string                 `json:"passwordHashType,omitempty"`
	EmailVerified    *bool                  `json:"emailVerified,omitempty"`
	ExternalID       string                 `json:"externalId,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// CreateUserResponse is the Target's response shape for user creation.
type CreateUserResponse struct {
	UserID string `json:"userId"`
}

// CreateMembershipRequest is the payload for "POST create organization-membership".
type CreateMembershipRequest struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
}

// CreateOrgRequest is the payload for "POST create org".
type CreateOrgRequest struct {
	Name       string `json:"name"`
	ExternalID string `json:"externalId,omitempty"`
}

// OrgResponse is the Target's organization shape.
type OrgResponse struct {
	OrgID      string `json:"orgId"`
	Name       string `json:"name"`
	ExternalID string `json:"externalId,omitempty"`
}

// RoleResponse is one role as returned by "GET roles for organization".
type RoleResponse struct {
	RoleID      string   `json:"roleId"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "environment" | "organization"
	Permissions []string `json:"permissions"`
}

// CreatePermissionRequest is the payload for "POST create permission".
type CreatePermissionRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name,omitempty"`
}

// CreateRoleRequest is the payload for creating an environment or
// organization role.
type CreateRoleRequest struct {
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// AssignPermissionsRequest is the payload for "POST assign-permissions-to-role".
type AssignPermissionsRequest struct {
	RoleID      string   `json:"roleId"`
	Permissions []string `json:"permissions"`
}

// AssignRoleRequest is the payload for "POST assign-role-to-membership".
type AssignRoleRequest struct {
	MembershipUserID string `json:"userId"`
	OrganizationID   string `json:"organizationId"`
	RoleID           string `json:"roleId"`
}

// APIError captures a Target error response, preserved verbatim into error
// records per §6 ("the core propagates these verbatim").
type APIError struct {
	StatusCode int
	Code       string
	RequestID  string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
