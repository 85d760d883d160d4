package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowBurstThenBlock(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, Burst: 3})
	defer rl.Stop()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("a") {
		t.Fatal("fourth request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own bucket")
	}

	now = now.Add(time.Second) // one token per second at 60/min
	if !rl.Allow("a") {
		t.Fatal("token should have been refilled")
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("a")

	now = now.Add(3 * time.Minute)
	rl.Allow("b")
	rl.cleanupStaleEntries()

	if rl.ActiveClients() != 1 {
		t.Fatalf("ActiveClients() = %d, want 1", rl.ActiveClients())
	}
}

func TestLimiter_MiddlewareOnlyLimitsPost(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, Burst: 1})
	defer rl.Stop()

	h := rl.Middleware(func(r *http.Request) string { return r.RemoteAddr }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(method string) int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/distribute", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := do(http.MethodPost); code != http.StatusOK {
		t.Fatalf("first POST = %d", code)
	}
	if code := do(http.MethodPost); code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d, want 429", code)
	}
	if code := do(http.MethodGet); code != http.StatusOK {
		t.Fatalf("GET = %d, want 200", code)
	}
}
