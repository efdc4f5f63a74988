package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ntugo/ntugo/internal/api/models"
)

// MessageTooManyRequests is returned with every 429 from the limiters.
const MessageTooManyRequests = "請求過於頻繁，請稍後再試"

// RateLimitConfig is a fixed-window request budget.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Budgets per endpoint group.
var (
	// AuthRateLimit covers register, login and the forgot-password flow.
	AuthRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}

	// ExpensiveRateLimit covers endpoints that call the language model.
	ExpensiveRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit covers cached transit and map reads.
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits by client address. chi's RealIP middleware must run
// first so proxies are not counted as one client.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return cfg.limit(httprate.KeyByRealIP)
}

// RateLimitByUser limits by authenticated user, falling back to the client
// address. It must run after Auth.
func RateLimitByUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return cfg.limit(keyByUserOrIP)
}

func (cfg RateLimitConfig) limit(key httprate.KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			// httprate does not expose the window reset, so a full window is advertised.
			w.Header().Set("Retry-After", retryAfter)
			models.NewTooManyRequests(GetRequestID(r.Context()), MessageTooManyRequests).Write(w)
		}),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return httprate.KeyByRealIP(r)
}
