package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetworks/fleet-api/internal/http/middleware"
)

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func limitedHandler(counter middleware.Counter, requests int) http.Handler {
	limiter := middleware.NewRateLimiter(counter, middleware.RateLimitConfig{
		Requests: requests,
		Window:   15 * time.Minute,
		KeyFunc:  middleware.IPRateLimitKeyFunc,
	})
	return limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, remoteAddr string) int {
	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_BlocksAboveBudget(t *testing.T) {
	h := limitedHandler(newFakeCounter(), 20)

	for i := 0; i < 20; i++ {
		if code := hit(h, "10.0.0.1:5000"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, code)
		}
	}

	// The 21st request within the window is rejected
	if code := hit(h, "10.0.0.1:5000"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for the 21st request, got %d", code)
	}

	// Other clients keep their own budget
	if code := hit(h, "10.0.0.2:5000"); code != http.StatusOK {
		t.Fatalf("expected 200 for a different client, got %d", code)
	}
}

func TestRateLimiter_FailsOpenOnCounterError(t *testing.T) {
	counter := newFakeCounter()
	counter.err = fmt.Errorf("connection refused")
	h := limitedHandler(counter, 1)

	for i := 0; i < 5; i++ {
		if code := hit(h, "10.0.0.3:5000"); code != http.StatusOK {
			t.Fatalf("request %d: expected fail-open 200, got %d", i+1, code)
		}
	}
}

func TestRateLimiter_SkipFunc(t *testing.T) {
	limiter := middleware.NewRateLimiter(newFakeCounter(), middleware.RateLimitConfig{
		Requests: 1,
		Window:   time.Minute,
		KeyFunc:  middleware.IPRateLimitKeyFunc,
		SkipFunc: func(r *http.Request) bool { return r.Header.Get("X-Internal") != "" },
	})
	h := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = "10.0.0.4:5000"
		req.Header.Set("X-Internal", "1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("skipped request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}
