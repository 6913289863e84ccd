package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	// 2 requests burst, 1 per second
	rl := NewRateLimiter(2, 1.0, 0)

	assert.True(t, rl.Allow("key1"))
	assert.True(t, rl.Allow("key1"))
	assert.False(t, rl.Allow("key1"), "third request should be denied")

	// separate bucket
	assert.True(t, rl.Allow("key2"))
	assert.True(t, rl.Allow("key2"))

	time.Sleep(1100 * time.Millisecond)
	assert.True(t, rl.Allow("key1"), "request after refill should be allowed")
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(1, 0.01, 0)

	assert.True(t, rl.Allow("key1"))
	assert.False(t, rl.Allow("key1"))

	rl.Reset("key1")
	assert.True(t, rl.Allow("key1"))
}

func TestRateLimiter_Stats(t *testing.T) {
	rl := NewRateLimiter(5, 2.0, time.Minute)
	rl.Allow("a")
	rl.Allow("b")

	stats := rl.GetStats()
	assert.Equal(t, 2, stats.ActiveBuckets)
	assert.Equal(t, 5, stats.TotalCapacity)
	assert.Equal(t, 2.0, stats.RefillRate)
}

func TestMiddleware_SignIn(t *testing.T) {
	m := NewMiddleware(SignInConfig(2))
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)

	rec := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2").Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for is ignored", headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, remote: "3.3.3.3:1", want: "3.3.3.3"},
		{name: "real ip is ignored", headers: map[string]string{"X-Real-IP": "4.4.4.4"}, remote: "3.3.3.3:1", want: "3.3.3.3"},
		{name: "remote addr", remote: "3.3.3.3:1", want: "3.3.3.3"},
		{name: "ipv6 remote addr", remote: "[::1]:8080", want: "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestMiddleware_ForwardedHeaders(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	send := func(h http.Handler, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("RotatingHeaderDoesNotBypass", func(t *testing.T) {
		h := NewMiddleware(SignInConfig(2)).Handler(ok)
		assert.Equal(t, http.StatusNoContent, send(h, "1.1.1.1"))
		assert.Equal(t, http.StatusNoContent, send(h, "1.1.1.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "1.1.1.3"))
	})

	t.Run("TrustedProxy", func(t *testing.T) {
		h := middleware.RealIP(NewMiddleware(SignInConfig(1)).Handler(ok))
		assert.Equal(t, http.StatusNoContent, send(h, "1.1.1.1"))
		assert.Equal(t, http.StatusNoContent, send(h, "1.1.1.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "1.1.1.1"))
	})
}
