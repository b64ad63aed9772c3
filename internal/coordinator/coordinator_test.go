package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/checkpoint"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/client"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/ratelimit"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/target"
)

func writeJobCSV(t *testing.T, rows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	content := "email\n"
	for i := 0; i < rows; i++ {
		content += "user@example.com\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunProcessesEveryChunkAndCompletesJob(t *testing.T) {
	var usersCreated int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/organizations/org_1/roles":
			json.NewEncoder(w).Encode([]target.RoleResponse{})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/users":
			usersCreated++
			json.NewEncoder(w).Encode(target.CreateUserResponse{UserID: "user_1"})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/organization_memberships":
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	tgt := target.New(srv.URL, "key", time.Second, client.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, Timeout: time.Second})
	limiter := ratelimit.New(1000, 100)
	orgs := cache.NewOrgCache(tgt, 10, 0, false)
	roles := cache.NewRoleCache(tgt, 10)

	csvPath := writeJobCSV(t, 5)
	opts := Options{
		CSVPath:       csvPath,
		CheckpointDir: t.TempDir(),
		JobID:         "job-1",
		ChunkSize:     2,
		Workers:       2,
		Concurrency:   1,
		Mode:          checkpoint.ModeSingleOrg,
		OrgID:         "org_1",
	}

	c := New(opts, tgt, limiter, orgs, roles, nil, nil)
	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Successes != 5 {
		t.Errorf("summary.Successes = %d, want 5", summary.Successes)
	}
	if usersCreated != 5 {
		t.Errorf("usersCreated = %d, want 5", usersCreated)
	}
}

func TestRunFailsOnMalformedCSVRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/organizations/org_1/roles":
			json.NewEncoder(w).Encode([]target.RoleResponse{})
		default:
			json.NewEncoder(w).Encode(target.CreateUserResponse{UserID: "user_1"})
		}
	}))
	defer srv.Close()

	tgt := target.New(srv.URL, "key", time.Second, client.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, Timeout: time.Second})
	limiter := ratelimit.New(1000, 100)
	orgs := cache.NewOrgCache(tgt, 10, 0, false)
	roles := cache.NewRoleCache(tgt, 10)

	// A ragged row (fewer fields than the header) trips encoding/csv's
	// field-count check during the coordinator's initial row count.
	csvPath := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(csvPath, []byte("email,org_id\nuser@example.com,org_1\nuser@example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		CSVPath:       csvPath,
		CheckpointDir: t.TempDir(),
		JobID:         "job-1",
		ChunkSize:     1,
		Workers:       2,
		Concurrency:   1,
		Mode:          checkpoint.ModeSingleOrg,
		OrgID:         "org_1",
	}

	c := New(opts, tgt, limiter, orgs, roles, nil, nil)
	_, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error from the malformed row")
	}
}
