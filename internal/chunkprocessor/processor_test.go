package chunkprocessor

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
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/client"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/errorlog"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/ratelimit"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/rowprocessor"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/target"
)

func writeCSV(t *testing.T, rows []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	content := "email\n"
	for _, r := range rows {
		content += r + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPctx(t *testing.T, handler http.HandlerFunc) *rowprocessor.Context {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tgt := target.New(srv.URL, "key", time.Second, client.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, Timeout: time.Second})

	w, err := errorlog.Open(filepath.Join(t.TempDir(), "errors.jsonl"))
	if err != nil {
		t.Fatalf("errorlog.Open: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	return &rowprocessor.Context{
		OrgID:       "org_1",
		DryRun:      true,
		RateLimiter: ratelimit.New(1000, 100),
		OrgCache:    cache.NewOrgCache(tgt, 10, 0, true),
		RoleCache:   cache.NewRoleCache(tgt, 10),
		Target:      tgt,
		ErrorLog:    w,
	}
}

func TestProcessOnlyRowsInRangeAreCounted(t *testing.T) {
	csvPath := writeCSV(t, []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"})
	pctx := newTestPctx(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected Target call in dry run: %s", r.URL.Path)
	})

	result, err := Process(context.Background(), csvPath, 2, 3, 2, pctx, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Successes != 2 {
		t.Errorf("expected only rows 2-3 processed, got successes=%d", result.Successes)
	}
}

func TestProcessWarnsOnUnknownColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("email,team\na@example.com,eng\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pctx := newTestPctx(t, nil)

	var warned []string
	_, err := Process(context.Background(), path, 1, 1, 1, pctx, func(col string) { warned = append(warned, col) })
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(warned) != 1 || warned[0] != "team" {
		t.Errorf("warned = %v", warned)
	}
}

func TestProcessMalformedCSVIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("email\n\"unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	pctx := newTestPctx(t, nil)

	_, err := Process(context.Background(), path, 1, 1, 1, pctx, nil)
	if err == nil {
		t.Fatal("expected a fatal CSV parse error")
	}
}

func TestProcessAggregatesDuplicates(t *testing.T) {
	csvPath := writeCSV(t, []string{"a@example.com"})
	pctx := newTestPctx(t, nil)
	pctx.DryRun = false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "user already exists"})
	}))
	defer srv.Close()
	pctx.Target = target.New(srv.URL, "key", time.Second, client.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, Timeout: time.Second})

	result, err := Process(context.Background(), csvPath, 1, 1, 1, pctx, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.DuplicateUsers != 1 || result.Successes != 1 {
		t.Errorf("result = %+v", result)
	}
}
