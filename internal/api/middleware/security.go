package middleware

import (
	"net/http"

	"github.com/ntugo/ntugo/internal/api/models"
)

// MessageHTTPSRequired is returned when plain HTTP is refused.
const MessageHTTPSRequired = "請使用 HTTPS 連線"

// SecurityHeaders sets the response headers for a JSON-only API. HSTS is
// only sent on HTTPS requests, where browsers honour it.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// The web client asks for location itself; the API never needs it.
		h.Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")
		if scheme(r) == "https" {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests that the load balancer reports as plain HTTP.
// Requests without X-Forwarded-Proto came in directly and pass.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" && proto != "https" {
				models.NewForbidden(GetRequestID(r.Context()), MessageHTTPSRequired).Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
