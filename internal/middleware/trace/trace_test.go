package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tipsplit/internal/metrics"
)

func TestRouteAssignsRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	var seen string
	h := m.Route("/x")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("header id %q != context id %q", rr.Header().Get(RequestIDHeader), seen)
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRouteHonoursCallerRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Route("/x")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("caller id not kept: %q", rr.Header().Get(RequestIDHeader))
	}
}

func TestRouteRecordsMetrics(t *testing.T) {
	reg := metrics.New()
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, reg)
	h := m.Route("/distribute")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))

	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/distribute", nil))
	}

	expected := `
# HELP tipsplit_http_requests_total HTTP requests handled, by route, method and status code.
# TYPE tipsplit_http_requests_total counter
tipsplit_http_requests_total{method="POST",route="/distribute",status="400"} 3
`
	if err := testutil.GatherAndCompare(reg.Registry(), strings.NewReader(expected), "tipsplit_http_requests_total"); err != nil {
		t.Fatal(err)
	}
}
