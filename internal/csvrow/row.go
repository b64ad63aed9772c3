// Package csvrow models a single logical row of the import CSV.
//
// Purpose:
//
//	Parse a raw CSV record (given the file's header) into a tagged struct with
//	known user/org/role columns plus an Extra map for anything the schema does
//	not recognize. Column sets are not part of the type: callers that need to
//	round-trip unknown columns (the retry CSV writer) use Extra.
//
// Dependencies:
//   - encoding/csv: row tokenizing is done by the caller (chunk processor)
//   - encoding/json: metadata column parsing
package csvrow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// knownColumns are the columns with dedicated struct fields. Anything else
// read from the header lands in Row.Extra.
var knownColumns = map[string]bool{
	"email":             true,
	"first_name":        true,
	"last_name":         true,
	"email_verified":    true,
	"external_id":       true,
	"password":          true,
	"password_hash":     true,
	"password_hash_type": true,
	"metadata":          true,
	"org_id":            true,
	"org_external_id":   true,
	"org_name":          true,
	"role_slugs":        true,
}

// Row is one logical CSV data row, 1-indexed by RecordNumber within the file
// (header excluded).
type Row struct {
	RecordNumber int

	Email            string
	FirstName        string
	LastName         string
	EmailVerified    string // raw token; interpreted by the row processor
	ExternalID       string
	Password         string
	PasswordHash     string
	PasswordHashType string
	Metadata         string // raw JSON text, parsed lazily
	OrgID            string
	OrgExternalID    string
	OrgName          string
	RoleSlugs        string // raw CSV or JSON-array text

	// Extra holds any column present in the header that csvrow does not
	// recognize, keyed by lowercased column name, preserving the row's
	// original values so a retry CSV can round-trip them verbatim.
	Extra map[string]string
}

// Parse builds a Row from a header (already lowercased by the caller) and one
// CSV record of equal length.
func Parse(header []string, record []string, recordNumber int) (Row, error) {
	if len(header) != len(record) {
		return Row{}, fmt.Errorf("csvrow: record %d has %d fields, header has %d", recordNumber, len(record), len(header))
	}

	row := Row{RecordNumber: recordNumber, Extra: map[string]string{}}
	for i, col := range header {
		val := record[i]
		switch col {
		case "email":
			row.Email = strings.TrimSpace(val)
		case "first_name":
			row.FirstName = strings.TrimSpace(val)
		case "last_name":
			row.LastName = strings.TrimSpace(val)
		case "email_verified":
			row.EmailVerified = strings.TrimSpace(val)
		case "external_id":
			row.ExternalID = strings.TrimSpace(val)
		case "password":
			row.Password = val
		case "password_hash":
			row.PasswordHash = val
		case "password_hash_type":
			row.PasswordHashType = strings.TrimSpace(val)
		case "metadata":
			row.Metadata = val
		case "org_id":
			row.OrgID = strings.TrimSpace(val)
		case "org_external_id":
			row.OrgExternalID = strings.TrimSpace(val)
		case "org_name":
			row.OrgName = strings.TrimSpace(val)
		case "role_slugs":
			row.RoleSlugs = strings.TrimSpace(val)
		default:
			row.Extra[col] = val
		}
	}
	return row, nil
}

// UnknownColumns returns which header entries are not part of the known
// schema, used by the chunk processor to emit a once-per-column warning.
func UnknownColumns(header []string) []string {
	var unknown []string
	for _, col := range header {
		if !knownColumns[col] {
			unknown = append(unknown, col)
		}
	}
	return unknown
}

// ParseMetadata decodes the Metadata column as a JSON object. A blank column
// is not an error; it yields a nil map.
func (r Row) ParseMetadata() (map[string]interface{}, error) {
	text := strings.TrimSpace(r.Metadata)
	if text == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON in metadata: %w", err)
	}
	return m, nil
}

// ParseEmailVerified interprets the boolean-like EmailVerified column.
// A blank value returns (false, false) — "undefined", not "false".
func (r Row) ParseEmailVerified() (value bool, set bool) {
	switch strings.ToLower(strings.TrimSpace(r.EmailVerified)) {
	case "":
		return false, false
	case "true", "1", "yes", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// MergedRoleSlugs parses the role_slugs column, accepting either a JSON array of
// strings or a comma-separated list, and merges in any roles supplied via an
// external_id → role_slugs mapping (e.g. from a separate role-assignment
// sidecar), deduplicating while preserving first-seen order.
func (r Row) MergedRoleSlugs(userRoleMapping map[string][]string) []string {
	seen := map[string]bool{}
	var merged []string

	add := func(slug string) {
		slug = strings.TrimSpace(slug)
		if slug == "" || seen[slug] {
			return
		}
		seen[slug] = true
		merged = append(merged, slug)
	}

	text := strings.TrimSpace(r.RoleSlugs)
	if text != "" {
		if strings.HasPrefix(text, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(text), &arr); err == nil {
				for _, s := range arr {
					add(s)
				}
			}
		} else {
			for _, s := range strings.Split(text, ",") {
				add(s)
			}
		}
	}

	if mapped, ok := userRoleMapping[r.ExternalID]; ok {
		for _, s := range mapped {
			add(s)
		}
	}

	return merged
}
