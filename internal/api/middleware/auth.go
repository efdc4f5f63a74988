package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ntugo/ntugo/internal/api/models"
	"github.com/ntugo/ntugo/internal/auth"
)

type userIDKey struct{}

// Messages returned with 401 responses.
const (
	MessageMissingToken = "未提供認證 token"
	MessageInvalidToken = "無效的 token"
	MessageExpiredToken = "token 已過期，請重新登入"
)

// TokenValidator resolves an access token to a user id. Implemented by
// *auth.Service.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

// Auth requires a valid bearer token and puts the user id on the context,
// the request log line and the server span.
func Auth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, r, MessageMissingToken)
				return
			}

			userID, err := tokens.ValidateAccessToken(token)
			if errors.Is(err, auth.ErrAccessTokenExpired) {
				unauthorized(w, r, MessageExpiredToken)
				return
			}
			if err != nil {
				unauthorized(w, r, MessageInvalidToken)
				return
			}

			ctx := r.Context()
			annotateUser(ctx, userID)
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", userID))
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userIDKey{}, userID)))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>". The
// scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// unauthorized writes the 401 envelope directly; the response package
// imports middleware for request ids.
func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	models.NewUnauthorized(GetRequestID(r.Context()), message).Write(w)
}

// GetUserID returns the authenticated user id, or "" outside Auth.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}
