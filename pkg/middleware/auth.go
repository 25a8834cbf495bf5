package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/response"
)

// Authenticator verifies the two credential schemes the API accepts.
type Authenticator interface {
	CheckPassword(ctx context.Context, email, password string) (auth.Identity, error)
	CheckToken(ctx context.Context, token string) (auth.Identity, error)
}

// Authenticate requires "Authorization: Basic" or "Authorization: Bearer"
// credentials and stores the caller's identity in the request context.
// Requests without valid credentials never reach the handler.
func Authenticate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id  auth.Identity
				err error
			)

			header := r.Header.Get("Authorization")
			scheme, token, _ := strings.Cut(header, " ")
			switch {
			case strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "":
				id, err = authn.CheckToken(r.Context(), strings.TrimSpace(token))
			case strings.EqualFold(scheme, "Basic"):
				email, password, ok := r.BasicAuth()
				if !ok {
					unauthorized(w)
					return
				}
				id, err = authn.CheckPassword(r.Context(), email, password)
			default:
				unauthorized(w)
				return
			}

			if err != nil {
				logger.WithCtx(r.Context()).Debug("authentication failed", "scheme", scheme, "error", err)
				if status := response.StatusOf(err); status >= http.StatusInternalServerError {
					response.Err(w, err)
					return
				}
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="catalog", charset="UTF-8"`)
	response.Unauthorized(w)
}

// UserIDFromCtx returns the authenticated user id.
func UserIDFromCtx(r *http.Request) (uint, bool) {
	id, ok := auth.FromContext(r.Context())
	return id.UserID, ok
}

// RoleFromCtx returns the authenticated user's role.
func RoleFromCtx(r *http.Request) (string, bool) {
	id, ok := auth.FromContext(r.Context())
	return id.Role, ok
}

// ActorFromCtx names the caller for logs and audit records.
func ActorFromCtx(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return id.Email
	}
	return "anonymous"
}
