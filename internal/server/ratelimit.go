package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// multiLimiter keys token buckets by caller identity in front of the
// credential endpoints: client IP for signup/prelogin/login, target username
// for login so one attacker cannot burn a victim's budget from many
// addresses. Buckets idle past ttl are swept so scanning the username space
// cannot grow the map without bound.
type multiLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu        sync.Mutex
	entries   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// perWindow expresses "n requests per window" as a refill rate.
func perWindow(n int, window time.Duration) rate.Limit {
	return rate.Limit(float64(n) / window.Seconds())
}

func newMultiLimiter(limit rate.Limit, burst int, ttl time.Duration) *multiLimiter {
	return &multiLimiter{
		limit:     limit,
		burst:     burst,
		ttl:       ttl,
		entries:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

func (m *multiLimiter) allow(key string) bool {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.entries[key]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(m.limit, m.burst)}
		m.entries[key] = b
	}
	b.lastSeen = now
	m.sweepLocked(now)
	return b.lim.Allow()
}

// sweepLocked drops idle buckets at most once per ttl instead of scanning
// the whole map on every request.
func (m *multiLimiter) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < m.ttl {
		return
	}
	m.lastSweep = now
	for k, b := range m.entries {
		if now.Sub(b.lastSeen) > m.ttl {
			delete(m.entries, k)
		}
	}
}

// getClientIP keys IP limits through a reverse proxy: first X-Forwarded-For
// hop when present, otherwise the socket peer.
func getClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
