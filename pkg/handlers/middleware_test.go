package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(rl *RateLimiter) http.Handler {
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func postFrom(h http.Handler, remote, forwarded string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = remote
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

// TestRateLimitIgnoresSpoofedForwardedFor sends many requests from one
// connection address with a fresh X-Forwarded-For each time. Only the first
// two pass and a single bucket is kept.
func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewRateLimiter(2)
	h := limitedHandler(rl)

	allowed := 0
	for i := 0; i < 1000; i++ {
		if postFrom(h, "10.0.0.1:5555", fmt.Sprintf("203.0.113.%d, 198.51.100.%d", i%256, i/256)) == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.1")
}

// TestRateLimitTrustedProxy checks X-Forwarded-For is honoured only for
// connections from a configured proxy, skipping proxy hops in the chain.
func TestRateLimitTrustedProxy(t *testing.T) {
	rl := NewRateLimiter(1, "10.0.0.0/8", "192.168.1.10", "not-an-ip")
	require.Len(t, rl.trusted, 2)
	h := limitedHandler(rl)

	assert.Equal(t, http.StatusOK, postFrom(h, "10.1.2.3:80", "203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, postFrom(h, "10.1.2.3:80", "203.0.113.7"))
	// A different client behind the same proxy has its own bucket, even when
	// it prepends a forged hop.
	assert.Equal(t, http.StatusOK, postFrom(h, "192.168.1.10:80", "1.2.3.4, 203.0.113.8, 10.9.9.9"))
	assert.Equal(t, http.StatusTooManyRequests, postFrom(h, "10.1.2.3:80", "5.6.7.8, 203.0.113.8"))
	assert.Contains(t, rl.visitors, "203.0.113.7")
	assert.Contains(t, rl.visitors, "203.0.113.8")

	// Untrusted peers are keyed on their own address.
	assert.Equal(t, http.StatusOK, postFrom(h, "172.16.0.1:80", "203.0.113.9"))
	assert.Contains(t, rl.visitors, "172.16.0.1")
	assert.NotContains(t, rl.visitors, "203.0.113.9")
}

// TestRateLimiterEvictsIdleClients checks buckets unused for longer than the
// idle TTL are dropped on the next sweep.
func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(5)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.limiter("203.0.113.1")
	now = now.Add(idleTTL / 2)
	rl.limiter("203.0.113.2")
	require.Len(t, rl.visitors, 2)

	now = now.Add(idleTTL/2 + time.Second)
	rl.limiter("203.0.113.3")
	assert.Len(t, rl.visitors, 2)
	assert.NotContains(t, rl.visitors, "203.0.113.1")
	assert.Contains(t, rl.visitors, "203.0.113.2")
}

func TestNewRateLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewRateLimiter(0))
	var rl *RateLimiter
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	assert.Equal(t, "192.0.2.1", rl.clientIP(req))
}
