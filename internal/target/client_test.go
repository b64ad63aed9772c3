package target

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/client"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := New(srv.URL, "test-key", time.Second, client.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, Timeout: time.Second})
	return c, srv.Close
}

func TestGetOrgByIDNotFoundReturnsNil(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
	})
	defer closeFn()

	entry, err := c.GetOrgByID(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("GetOrgByID: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry for 404, got %+v", entry)
	}
}

func TestGetOrgByIDSuccess(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(OrgResponse{OrgID: "org_1", Name: "Acme", ExternalID: "ext_1"})
	})
	defer closeFn()

	entry, err := c.GetOrgByID(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("GetOrgByID: %v", err)
	}
	if entry == nil || entry.ID != "org_1" || entry.Name != "Acme" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestCreatePermissionConflictIsIdempotent(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "already exists"})
	})
	defer closeFn()

	if err := c.CreatePermission(context.Background(), "perm:read", "Read"); err != nil {
		t.Errorf("expected conflict to be swallowed as idempotent, got %v", err)
	}
}

func TestCreateUserPropagatesAPIError(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"code": "invalid_email", "message": "bad email"})
	})
	defer closeFn()

	_, err := c.CreateUser(context.Background(), CreateUserRequest{Email: "nope"})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Code != "invalid_email" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestBreakerStateStartsClosed(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(OrgResponse{})
	})
	defer closeFn()

	if c.BreakerState().String() != "closed" {
		t.Errorf("expected breaker to start closed, got %s", c.BreakerState().String())
	}
}
