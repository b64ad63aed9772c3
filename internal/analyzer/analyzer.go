// Package analyzer implements C9: streaming a job's errors.jsonl into
// normalized, grouped, retryability-classified findings, plus a retry CSV
// and a JSON report.
package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errorlog"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/output"
)

// RetryStrategyType is how a retryable error should be retried.
type RetryStrategyType string

const (
	StrategyImmediate   RetryStrategyType = "immediate"
	StrategyWithBackoff RetryStrategyType = "with_backoff"
	StrategyAfterFix    RetryStrategyType = "after_fix"
)

// Severity ranks how urgently a group needs attention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// RetryStrategy describes how to retry a group's retryable errors.
type RetryStrategy struct {
	Type        RetryStrategyType `json:"type"`
	DelayMs     int               `json:"delayMs,omitempty"`
	FixRequired string            `json:"fixRequired,omitempty"`
}

// Group is one normalized error bucket.
type Group struct {
	ID              string            `json:"id"`
	Pattern         string            `json:"pattern"`
	ErrorType       errorlog.ErrorType `json:"errorType,omitempty"`
	HTTPStatus      int               `json:"httpStatus,omitempty"`
	Count           int               `json:"count"`
	Severity        Severity          `json:"severity"`
	Retryable       bool              `json:"retryable"`
	RetryStrategy   *RetryStrategy    `json:"retryStrategy,omitempty"`
	Examples        []errorlog.Record `json:"examples"`
	AffectedEmails  []string          `json:"affectedEmails"`
	Suggestion      string            `json:"suggestion"`
	Actionable      bool              `json:"actionable"`

	seenEmails map[string]bool
}

// RetryabilityBucket summarizes one side of the retryable/non-retryable
// split.
type RetryabilityBucket struct {
	Count      int            `json:"count"`
	Percentage float64        `json:"percentage"`
	ByReason   map[string]int `json:"byReason"`
}

// Report is the analyzer's full JSON output.
type Report struct {
	Summary struct {
		TotalErrors int `json:"totalErrors"`
		GroupCount  int `json:"groupCount"`
	} `json:"summary"`
	Groups        []*Group            `json:"groups"`
	Retryability  struct {
		Retryable    RetryabilityBucket `json:"retryable"`
		NonRetryable RetryabilityBucket `json:"nonRetryable"`
	} `json:"retryability"`
	Suggestions   []string  `json:"suggestions"`
	Timestamp     time.Time `json:"timestamp"`
	ErrorsFile    string    `json:"errorsFile"`
	ErrorsFileHash string   `json:"errorsFileHash"`
}

var (
	emailRe  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	idRe     = regexp.MustCompile(`\b(user|org)_[A-Za-z0-9]{10,}\b`)
	uuidRe   = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	numberRe = regexp.MustCompile(`\b\d{5,}\b`)
	spaceRe  = regexp.MustCompile(`\s+`)
	notFoundRe = regexp.MustCompile(`(?i)not found`)
)

// Normalize collapses a raw error message into a stable pattern.
func Normalize(message string) string {
	msg := emailRe.ReplaceAllString(message, "<EMAIL>")
	msg = idRe.ReplaceAllStringFunc(msg, func(m string) string {
		if strings.HasPrefix(m, "user_") {
			return "<USER_ID>"
		}
		return "<ORG_ID>"
	})
	msg = uuidRe.ReplaceAllString(msg, "<UUID>")
	msg = numberRe.ReplaceAllString(msg, "<NUMBER>")
	msg = spaceRe.ReplaceAllString(msg, " ")
	return strings.TrimSpace(msg)
}

// classification is the retryability decision-tree output for one record.
type classification struct {
	retryable bool
	reason    string
	strategy  RetryStrategy
	severity  Severity
}

// classify implements §4.8's decision tree, evaluated top to bottom.
func classify(rec errorlog.Record) classification {
	switch {
	case rec.HTTPStatus == 429:
		return classification{true, "rate_limited", RetryStrategy{Type: StrategyWithBackoff, DelayMs: 5000}, SeverityMedium}
	case rec.HTTPStatus >= 500:
		return classification{true, "server_error", RetryStrategy{Type: StrategyImmediate}, SeverityMedium}
	case rec.ErrorType == errorlog.TypeUserCreate && rec.HTTPStatus == 409:
		reason := "conflict_duplicate"
		if strings.Contains(strings.ToLower(rec.ErrorMessage), "valid") {
			reason = "user_create_validation_error"
		}
		return classification{false, reason, RetryStrategy{Type: StrategyAfterFix}, SeverityHigh}
	case rec.HTTPStatus == 400 || rec.HTTPStatus == 422:
		return classification{false, "validation_error", RetryStrategy{Type: StrategyAfterFix}, SeverityCritical}
	case rec.ErrorType == errorlog.TypeOrgResolution && notFoundRe.MatchString(rec.ErrorMessage):
		return classification{false, "org_not_found", RetryStrategy{Type: StrategyAfterFix}, SeverityCritical}
	case rec.ErrorType == errorlog.TypeOrgResolution:
		return classification{true, "org_lookup_error", RetryStrategy{Type: StrategyImmediate}, SeverityCritical}
	case rec.ErrorType == errorlog.TypeMembershipCreate && rec.UserID != "":
		switch rec.HTTPStatus {
		case 409:
			return classification{false, "membership_duplicate", RetryStrategy{Type: StrategyAfterFix}, SeverityHigh}
		case 400, 422:
			return classification{false, "membership_validation_error", RetryStrategy{Type: StrategyAfterFix}, SeverityCritical}
		default:
			return classification{true, "membership_error_user_exists", RetryStrategy{Type: StrategyImmediate}, SeverityLow}
		}
	case rec.HTTPStatus == 0:
		return classification{true, "unknown_error", RetryStrategy{Type: StrategyImmediate}, SeverityLow}
	default:
		return classification{false, "unclassified", RetryStrategy{Type: StrategyAfterFix}, SeverityLow}
	}
}

// Analyze streams errorsPath and returns the full report.
func Analyze(errorsPath string) (*Report, error) {
	groups := map[string]*Group{}
	var order []string
	total := 0

	retryableCount, nonRetryableCount := 0, 0
	retryableReasons := map[string]int{}
	nonRetryableReasons := map[string]int{}

	err := errorlog.Stream(errorsPath, func(rec errorlog.Record) error {
		total++
		cls := classify(rec)
		pattern := Normalize(rec.ErrorMessage)
		id := groupID(pattern, string(rec.ErrorType), rec.HTTPStatus)

		g, ok := groups[id]
		if !ok {
			g = &Group{
				ID:         id,
				Pattern:    pattern,
				ErrorType:  rec.ErrorType,
				HTTPStatus: rec.HTTPStatus,
				Retryable:  cls.retryable,
				Severity:   cls.severity,
				seenEmails: map[string]bool{},
			}
			strategy := cls.strategy
			g.RetryStrategy = &strategy
			groups[id] = g
			order = append(order, id)
		}
		g.Count++
		if len(g.Examples) < 3 {
			g.Examples = append(g.Examples, rec)
		}
		email := strings.ToLower(rec.Email)
		if email != "" && !g.seenEmails[email] && len(g.AffectedEmails) < 10 {
			g.seenEmails[email] = true
			g.AffectedEmails = append(g.AffectedEmails, email)
		}

		if cls.retryable {
			retryableCount++
			retryableReasons[cls.reason]++
		} else {
			nonRetryableCount++
			nonRetryableReasons[cls.reason]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: stream errors: %w", err)
	}

	sort.Slice(order, func(i, j int) bool { return groups[order[i]].Count > groups[order[j]].Count })

	report := &Report{Timestamp: time.Now().UTC(), ErrorsFile: errorsPath}
	report.Summary.TotalErrors = total
	report.Summary.GroupCount = len(groups)

	for _, id := range order {
		g := groups[id]
		g.Suggestion, g.Actionable = suggest(g)
		report.Groups = append(report.Groups, g)
		report.Suggestions = append(report.Suggestions, g.Suggestion)
	}

	report.Retryability.Retryable = bucket(retryableCount, total, retryableReasons)
	report.Retryability.NonRetryable = bucket(nonRetryableCount, total, nonRetryableReasons)

	if hash, err := hashFile(errorsPath); err == nil {
		report.ErrorsFileHash = hash
	}

	return report, nil
}

func bucket(count, total int, byReason map[string]int) RetryabilityBucket {
	pct := 0.0
	if total > 0 {
		pct = float64(count) / float64(total) * 100
	}
	return RetryabilityBucket{Count: count, Percentage: pct, ByReason: byReason}
}

func groupID(pattern, errorType string, status int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", pattern, errorType, status)))
	return hex.EncodeToString(sum[:])[:12]
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func suggest(g *Group) (message string, actionable bool) {
	switch {
	case g.ErrorType == errorlog.TypeOrgResolution && strings.Contains(g.Pattern, "not found"):
		return "organization reference could not be resolved; verify org_id/org_external_id or supply org_name to auto-create", true
	case g.HTTPStatus == 429:
		return "rate limited by the target API; lower --rate or retry after the backoff window", false
	case g.HTTPStatus >= 500:
		return "target API returned a server error; safe to retry immediately", false
	case g.HTTPStatus == 409:
		return "resource already exists; treat as a duplicate or adjust the row to a new email/external_id", true
	case g.HTTPStatus == 400 || g.HTTPStatus == 422:
		return "row failed validation; fix the offending column(s) and include in a retry CSV", true
	default:
		return "unclassified error; inspect the examples for a manual remediation", false
	}
}

const retryCSVHeaderCount = 12

var retryCSVHeader = []string{
	"email", "password", "password_hash", "password_hash_type", "first_name",
	"last_name", "email_verified", "external_id", "metadata", "org_id",
	"org_external_id", "org_name",
}

// WriteRetryCSV streams errorsPath and emits one row per retryable error
// record, deduped by lowercased email unless includeDuplicates is set.
func WriteRetryCSV(errorsPath, outPath string, includeDuplicates bool) (int, error) {
	w, err := output.NewCSVFormatter(outPath)
	if err != nil {
		return 0, fmt.Errorf("analyzer: create retry csv: %w", err)
	}
	defer w.Close()

	if err := w.WriteMetadata(map[string]interface{}{
		"source":             errorsPath,
		"include_duplicates": includeDuplicates,
	}); err != nil {
		return 0, fmt.Errorf("analyzer: write retry csv: %w", err)
	}

	var customColumns []string
	seenEmail := map[string]bool{}
	written := 0
	wroteHeader := false

	err = errorlog.Stream(errorsPath, func(rec errorlog.Record) error {
		if !classify(rec).retryable {
			return nil
		}
		email := strings.ToLower(rec.Email)
		if !includeDuplicates && seenEmail[email] {
			return nil
		}
		seenEmail[email] = true

		if !wroteHeader {
			customColumns = extraColumns(rec.RawRow)
			if err := w.WriteHeader(append(append([]string{}, retryCSVHeader...), customColumns...)); err != nil {
				return err
			}
			wroteHeader = true
		}

		row := make([]string, 0, retryCSVHeaderCount+len(customColumns))
		for _, col := range retryCSVHeader {
			row = append(row, rec.RawRow[col])
		}
		for _, col := range customColumns {
			row = append(row, rec.RawRow[col])
		}
		if err := w.WriteRow(row); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("analyzer: write retry csv: %w", err)
	}
	return written, nil
}

func extraColumns(rawRow map[string]string) []string {
	known := map[string]bool{}
	for _, c := range retryCSVHeader {
		known[c] = true
	}
	known["role_slugs"] = true
	var extras []string
	for k := range rawRow {
		if !known[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return extras
}
