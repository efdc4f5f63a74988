package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ntugo/ntugo/internal/api/middleware"
)

func hit(h http.Handler, remoteAddr, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/tdx/bus-stops", http.NoBody)
	req.RemoteAddr = remoteAddr
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 3,
		WindowLength: time.Minute,
	})(okHandler)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:12345", "").Code, "request %d", i+1)
	}

	rec := hit(handler, "10.0.0.1:12345", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:12345", "").Code)
}

func TestRateLimit_RetryAfterFollowsWindow(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 1,
		WindowLength: 1500 * time.Millisecond,
	})(okHandler)

	hit(handler, "10.0.0.3:1", "")
	rec := hit(handler, "10.0.0.3:1", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}

func TestRateLimitByUser_KeysOnUser(t *testing.T) {
	token := issueToken(t, "usr_limited", nil)
	handler := middleware.Auth(createTestAuthService(t))(
		middleware.RateLimitByUser(middleware.RateLimitConfig{
			RequestLimit: 2,
			WindowLength: time.Minute,
		})(okHandler),
	)

	// Same user from two addresses shares one budget.
	assert.Equal(t, http.StatusOK, hit(handler, "192.168.1.1:1", token).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "192.168.1.2:1", token).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.168.1.3:1", token).Code)

	other := issueToken(t, "usr_other", nil)
	assert.Equal(t, http.StatusOK, hit(handler, "192.168.1.1:1", other).Code)
}

func TestRateLimitByUser_FallsBackToIP(t *testing.T) {
	handler := middleware.RateLimitByUser(middleware.RateLimitConfig{
		RequestLimit: 1,
		WindowLength: time.Minute,
	})(okHandler)

	assert.Equal(t, http.StatusOK, hit(handler, "172.16.0.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "172.16.0.1:1", "").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "172.16.0.2:1", "").Code)
}

func TestRateLimitExceededResponse_Format(t *testing.T) {
	handler := middleware.RequestID(
		middleware.RateLimitByIP(middleware.RateLimitConfig{
			RequestLimit: 1,
			WindowLength: time.Minute,
		})(okHandler),
	)

	hit(handler, "203.0.113.1:12345", "")
	rec := hit(handler, "203.0.113.1:12345", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `"error":"too_many_requests"`)
	assert.Contains(t, body, middleware.MessageTooManyRequests)
	assert.Contains(t, body, `"traceId":"req_`)
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 10, middleware.AuthRateLimit.RequestLimit)
	assert.Equal(t, 30, middleware.ExpensiveRateLimit.RequestLimit)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
	for _, cfg := range []middleware.RateLimitConfig{
		middleware.AuthRateLimit, middleware.ExpensiveRateLimit, middleware.StandardRateLimit,
	} {
		assert.Equal(t, time.Minute, cfg.WindowLength)
	}
}
