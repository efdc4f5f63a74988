package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Probe paths polled by the platform; logged at debug unless they fail.
var probePaths = map[string]bool{
	"/api/ops/health": true,
	"/api/ops/ready":  true,
}

// requestLog collects fields that inner middleware learns about a request.
type requestLog struct {
	userID string
}

type requestLogKey struct{}

// annotateUser records the authenticated user on the request log line.
func annotateUser(ctx context.Context, userID string) {
	if l, ok := ctx.Value(requestLogKey{}).(*requestLog); ok {
		l.userID = userID
	}
}

// Logger returns a middleware that writes one line per request. 5xx answers
// are logged at error and 4xx at warn. Coordinates in the query string are
// never logged.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recordStatus(w)
			entry := &requestLog{}

			scoped := log.With().Str("request_id", GetRequestID(r.Context())).Logger()
			ctx := scoped.WithContext(context.WithValue(r.Context(), requestLogKey{}, entry))
			next.ServeHTTP(rec, r.WithContext(ctx))

			event := levelFor(log, r, rec.status)
			spanCtx := trace.SpanContextFromContext(r.Context())
			if spanCtx.IsValid() {
				event = event.
					Str("trace_id", spanCtx.TraceID().String()).
					Str("span_id", spanCtx.SpanID().String())
			}
			if entry.userID != "" {
				event = event.Str("user_id", entry.userID)
			}

			event.
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", rec.status).
				Int64("bytes", rec.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

// LoggerFrom returns the request-scoped logger installed by Logger. Outside
// Logger it returns a disabled logger.
func LoggerFrom(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

func levelFor(log zerolog.Logger, r *http.Request, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	case probePaths[r.URL.Path]:
		return log.Debug()
	default:
		return log.Info()
	}
}
