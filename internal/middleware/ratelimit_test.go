package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAllowCountsPerKey(t *testing.T) {
	rl := NewRateLimiter()

	// One client exhausts its budget; another is untouched.
	for i := 0; i < 3; i++ {
		if !rl.Allow("203.0.113.7", 3, time.Minute) {
			t.Fatalf("request %d from first client should pass", i+1)
		}
	}
	if rl.Allow("203.0.113.7", 3, time.Minute) {
		t.Error("first client should be over its limit")
	}
	if !rl.Allow("198.51.100.2", 3, time.Minute) {
		t.Error("second client should be unaffected")
	}
}

func TestAllowWindowReset(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 2; i++ {
		rl.Allow("203.0.113.7", 2, 10*time.Millisecond)
	}
	if rl.Allow("203.0.113.7", 2, 10*time.Millisecond) {
		t.Error("should be blocked within the window")
	}

	time.Sleep(15 * time.Millisecond)

	if !rl.Allow("203.0.113.7", 2, 10*time.Millisecond) {
		t.Error("expired window should reset the count")
	}
}

func TestCleanupDropsExpiredBuckets(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("stale", 5, 10*time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	rl.Allow("live", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["stale"]; ok {
		t.Error("expired bucket survived cleanup")
	}
	if _, ok := rl.buckets["live"]; !ok {
		t.Error("live bucket dropped by cleanup")
	}
}

func TestRateLimitSigninPacing(t *testing.T) {
	rl := NewRateLimiter()

	// Key the way the server does: by resolved client IP.
	handler := RateLimit(rl, RealIP, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/auth/request-code", strings.NewReader(`{"email":"alice@example.com"}`))
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := request("203.0.113.7"); rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := request("203.0.113.7")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("429 content type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), "too many requests") {
		t.Errorf("429 body = %q", rec.Body.String())
	}

	// A different forwarded client is still served.
	if rec := request("198.51.100.2"); rec.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want %d", rec.Code, http.StatusOK)
	}
}
