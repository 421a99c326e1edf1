package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_AllowedOrigin(t *testing.T) {
	cfg := DefaultCORSConfig([]string{"https://dealer.example.com"})
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", http.NoBody)
	req.Header.Set("Origin", "https://dealer.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://dealer.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Refresh-Token")
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	cfg := DefaultCORSConfig([]string{"https://dealer.example.com"})
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", http.NoBody)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	cfg := DefaultCORSConfig([]string{"https://dealer.example.com"})
	reached := false
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", http.NoBody)
	req.Header.Set("Origin", "https://dealer.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, reached, "preflight never hits the handler")
	assert.Equal(t, "GET, POST, PATCH, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "development"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "no HSTS outside production TLS")
}

func TestSecurityHeaders_HSTSInProduction(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "production"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")

	// Plain HTTP in production still gets no HSTS.
	req = httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRateLimitByIP(t *testing.T) {
	limit := RateLimitConfig{RequestsPerMinute: 3}
	handler := RateLimitByIP(limit)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", http.NoBody)
		req.RemoteAddr = "10.1.1.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d within the limit", i+1)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", http.NoBody)
	req.RemoteAddr = "10.1.1.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")

	// A different client IP is unaffected.
	req = httptest.NewRequest(http.MethodPost, "/auth/login", http.NoBody)
	req.RemoteAddr = "10.1.1.2:5000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
