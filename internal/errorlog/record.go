// Package errorlog defines the per-row failure record and the append-only
// JSONL sink the row processor (C4) writes to and the analyzer (C9) reads
// from.
package errorlog

import "time"

// ErrorType classifies which pipeline stage rejected the row.
type ErrorType string

const (
	TypeUserCreate       ErrorType = "user_create"
	TypeMembershipCreate ErrorType = "membership_create"
	TypeOrgResolution    ErrorType = "org_resolution"
	TypeRoleAssignment   ErrorType = "role_assignment"
)

// Record is one JSONL line: the Target's side of a failed row, plus enough of
// the original row to support a retry CSV.
type Record struct {
	RecordNumber     int               `json:"recordNumber"`
	Email            string            `json:"email,omitempty"`
	UserID           string            `json:"userId,omitempty"`
	ErrorType        ErrorType         `json:"errorType"`
	ErrorMessage     string            `json:"errorMessage"`
	HTTPStatus       int               `json:"httpStatus,omitempty"`
	WorkosCode       string            `json:"workosCode,omitempty"`
	WorkosRequestID  string            `json:"workosRequestId,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	RawRow           map[string]string `json:"rawRow"`
	OrgID            string            `json:"orgId,omitempty"`
	OrgExternalID    string            `json:"orgExternalId,omitempty"`
	RoleSlugs        []string          `json:"roleSlugs,omitempty"`
}
