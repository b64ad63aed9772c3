package breaker

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type flakyTransport struct {
	fail int
	err  error
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.fail > 0 {
		f.fail--
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestTransportPassesThroughOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewTransport("test", nil)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if tr.State().String() != "closed" {
		t.Errorf("expected closed state, got %s", tr.State().String())
	}
}

func TestTransportTripsOpenAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyTransport{fail: 10, err: errTimeout{}}
	tr := NewTransport("test", inner)

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	for i := 0; i < 5; i++ {
		if _, err := tr.RoundTrip(req); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}

	if tr.State().String() != "open" {
		t.Errorf("expected breaker to trip open after 5 consecutive failures, got %s", tr.State().String())
	}

	_, err := tr.RoundTrip(req)
	if err == nil {
		t.Fatal("expected open-state error")
	}
}

type errTimeout struct{}

func (errTimeout) Error() string { return "simulated timeout" }
