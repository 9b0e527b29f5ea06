package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func frozenLimiter(rps float64, burst int) (*RateLimiter, *time.Time) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(rps, burst)
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestRateLimiterPerClient(t *testing.T) {
	limiter, now := frozenLimiter(1, 2)

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))

	*now = now.Add(time.Second)
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	limiter, _ := frozenLimiter(1, 1)
	handler := limiter.Middleware(okHandler())

	request := func(remote, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
		req.RemoteAddr = remote
		if userID != "" {
			req = req.WithContext(WithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:1234", "").Code)

	limited := request("10.0.0.1:5678", "")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.False(t, decodeError(t, limited).Success)

	// Same address, but an authenticated user gets its own bucket.
	assert.Equal(t, http.StatusOK, request("10.0.0.1:1234", "user-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.2:1", "user-1").Code)
}

func TestRateLimiterSweep(t *testing.T) {
	limiter, now := frozenLimiter(10, 10)

	limiter.Allow("old")
	*now = now.Add(20 * time.Minute)
	limiter.Allow("fresh")
	*now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, limiter.Sweep(30*time.Minute))
	assert.Equal(t, 1, limiter.Len())
	assert.Equal(t, 0, limiter.Sweep(30*time.Minute))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:443"
	assert.Equal(t, "ip:192.168.1.5", clientKey(req))

	req.RemoteAddr = "unix"
	assert.Equal(t, "ip:unix", clientKey(req))

	req = req.WithContext(WithUserID(req.Context(), "u"))
	assert.Equal(t, "user:u", clientKey(req))
}
