package middleware

import (
	"context"
	"net/http"
	"strings"

	"invencea-api/internal/model"
	"invencea-api/pkg/apierror"
	"invencea-api/pkg/response"
)

// PrincipalKey is the context key of the authenticated caller.
const PrincipalKey contextKey = "principal"

// Authenticator resolves a bearer token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Principal, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Authenticator Authenticator
}

// NewAuthMiddleware creates an authentication middleware with injected dependencies.
// Every request it wraps must carry "Authorization: Bearer <token>".
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				response.Error(w, apierror.Unauthorized("Authentication required"))
				return
			}

			p, err := cfg.Authenticator.Authenticate(r.Context(), token)
			if err != nil {
				response.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects callers whose role is not among roles.
func RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				response.Error(w, apierror.Unauthorized("Authentication required"))
				return
			}
			if !p.Role.In(roles...) {
				response.Error(w, apierror.RoleNotAllowed(names...))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// PrincipalFromContext returns the authenticated caller.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(model.Principal)
	return p, ok
}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}
