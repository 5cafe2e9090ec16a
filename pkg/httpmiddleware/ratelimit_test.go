package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// slowRefill keeps buckets from refilling during a test.
const slowRefill = 0.001

func send(h http.Handler, remoteAddr string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(t.Context(), RateLimitConfig{Rate: slowRefill, Burst: 5})(okHandler())

	for i := range 5 {
		w := send(handler, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"4", "3", "2", "1", "0"}[i], w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(t.Context(), RateLimitConfig{Rate: 1, Burst: 2})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, send(handler, "10.0.0.1:9999").Code)
	}

	w := send(handler, "10.0.0.1:9999")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests","message":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	handler := RateLimit(t.Context(), RateLimitConfig{Rate: slowRefill, Burst: 1})(okHandler())

	assert.Equal(t, http.StatusOK, send(handler, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, send(handler, "10.0.0.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(handler, "10.0.0.1:5678").Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := RateLimit(t.Context(), RateLimitConfig{
		Rate:  slowRefill,
		Burst: 1,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})(okHandler())

	withKey := func(key string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("X-API-Key", key) }
	}
	assert.Equal(t, http.StatusOK, send(handler, "", withKey("key-a")).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(handler, "", withKey("key-a")).Code)
	assert.Equal(t, http.StatusOK, send(handler, "", withKey("key-b")).Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	handler := RateLimit(t.Context(), RateLimitConfig{Rate: slowRefill, Burst: 1})(okHandler())
	xff := func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18") }

	assert.Equal(t, http.StatusOK, send(handler, "192.168.1.1:4444", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(handler, "192.168.1.2:5555", xff).Code)
}

func TestRateLimit_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Rate: slowRefill, Burst: 1, IdleTTL: time.Minute})
	now := time.Now()

	_, _, allowed := rl.allow("a", now)
	require.True(t, allowed)
	_, _, allowed = rl.allow("b", now.Add(30*time.Second))
	require.True(t, allowed)

	rl.evict(now.Add(61 * time.Second))
	assert.NotContains(t, rl.buckets, "a")
	assert.Contains(t, rl.buckets, "b")

	// An evicted client starts with a full bucket again.
	_, _, allowed = rl.allow("a", now.Add(62*time.Second))
	assert.True(t, allowed)
}

func TestRateLimit_EvictionStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := RateLimit(ctx, RateLimitConfig{Rate: 1, Burst: 1, IdleTTL: 10 * time.Millisecond})(okHandler())
	assert.Equal(t, http.StatusOK, send(handler, "10.0.0.9:1").Code)
	cancel()
}
