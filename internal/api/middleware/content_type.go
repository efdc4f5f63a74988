package middleware

import (
	"mime"
	"net/http"

	"github.com/ntugo/ntugo/internal/api/models"
)

// MessageUnsupportedMediaType is returned when a body is not JSON.
const MessageUnsupportedMediaType = "請求內容必須為 JSON"

// ContentTypeJSON defaults the response Content-Type to JSON. Handlers may
// override it before writing.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON answers 415 for POST bodies declared as anything but JSON.
// A missing Content-Type is accepted; the web client omits it on empty
// bodies such as POST /api/community/chatrooms/ai.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				if mediaType, _, err := mime.ParseMediaType(ct); err != nil || mediaType != "application/json" {
					models.NewError(
						http.StatusUnsupportedMediaType,
						"unsupported_media_type",
						GetRequestID(r.Context()),
						MessageUnsupportedMediaType,
					).Write(w)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
