// Package middleware provides the HTTP middleware chain: request IDs,
// request logging, metrics, and bearer-token authentication.
package middleware

import (
	"net/http"
	"strings"

	"github.com/vigia-iot/vigia/pkg/auth"
	"github.com/vigia-iot/vigia/pkg/contextkeys"
	"github.com/vigia-iot/vigia/pkg/httputil"
)

// AuthMiddleware authenticates requests by resolving the bearer token into
// a principal.
type AuthMiddleware struct {
	resolver *auth.PrincipalResolver
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(resolver *auth.PrincipalResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handler rejects requests without a valid session token and stores the
// principal and raw token in the request context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}
		token := parts[1]

		principal, err := m.resolver.Resolve(r.Context(), token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = contextkeys.WithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
