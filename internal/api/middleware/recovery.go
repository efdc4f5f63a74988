package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/api/models"
)

// MessageInternalError is the body sent after a recovered panic.
const MessageInternalError = "伺服器內部錯誤"

// Recovery turns a handler panic into a logged 500. If the handler had
// already started its response the envelope is skipped, since the status
// line is gone. http.ErrAbortHandler is passed through to net/http.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recordStatus(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				requestID := GetRequestID(r.Context())
				log.Error().
					Str("request_id", requestID).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", v).
					Bool("response_started", rec.wroteHeader).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				if !rec.wroteHeader {
					models.NewInternalError(requestID, MessageInternalError).Write(rec)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
