package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestMultiLimiterBurstPerKey(t *testing.T) {
	ml := newMultiLimiter(rate.Limit(1), 2, time.Minute)
	for i := 0; i < 2; i++ {
		if !ml.allow("10.0.0.1") {
			t.Fatalf("request %d within burst should pass", i+1)
		}
	}
	if ml.allow("10.0.0.1") {
		t.Fatal("burst exhausted, request should be limited")
	}
	if !ml.allow("10.0.0.2") {
		t.Fatal("separate key must not share the exhausted bucket")
	}
}

func TestMultiLimiterRefill(t *testing.T) {
	ml := newMultiLimiter(rate.Limit(50), 1, time.Minute)
	if !ml.allow("alice") {
		t.Fatal("first request should pass")
	}
	if ml.allow("alice") {
		t.Fatal("second immediate request should be limited")
	}
	time.Sleep(30 * time.Millisecond)
	if !ml.allow("alice") {
		t.Fatal("bucket should refill over time")
	}
}

func TestMultiLimiterSweepsIdleBuckets(t *testing.T) {
	ml := newMultiLimiter(rate.Limit(1), 1, 10*time.Millisecond)
	ml.allow("stale")
	ml.mu.Lock()
	ml.entries["stale"].lastSeen = time.Now().Add(-time.Minute)
	ml.lastSweep = time.Now().Add(-time.Minute)
	ml.mu.Unlock()

	ml.allow("fresh")

	ml.mu.Lock()
	_, staleKept := ml.entries["stale"]
	n := len(ml.entries)
	ml.mu.Unlock()
	if staleKept {
		t.Fatal("idle bucket survived the sweep")
	}
	if n != 1 {
		t.Fatalf("expected only the fresh bucket, got %d", n)
	}
}

func TestPerWindow(t *testing.T) {
	if got := perWindow(60, time.Minute); got != rate.Limit(1) {
		t.Fatalf("60/min = %v, want 1/s", got)
	}
}

func TestGetClientIP(t *testing.T) {
	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"socket peer", "192.0.2.10:4242", "", "192.0.2.10"},
		{"forwarded", "10.0.0.1:80", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:80", "203.0.113.7, 10.0.0.2", "203.0.113.7"},
		{"no port", "192.0.2.10", "", "192.0.2.10"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.remote
		if tc.xff != "" {
			r.Header.Set("X-Forwarded-For", tc.xff)
		}
		if got := getClientIP(r); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
