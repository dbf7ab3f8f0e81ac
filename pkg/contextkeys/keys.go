// Package contextkeys centralizes request-context key definitions so every
// middleware and handler agrees on what travels in the context.
package contextkeys

import (
	"context"

	"github.com/vigia-iot/vigia/pkg/authz"
)

// Key is the type for context keys to prevent collisions.
type Key string

const (
	// PrincipalKey contains the authenticated authz.Principal.
	// Set by: middleware.Auth. Required by: every protected endpoint.
	PrincipalKey Key = "principal"

	// TokenKey contains the raw bearer token string, kept for logout.
	// Set by: middleware.Auth.
	TokenKey Key = "token"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: middleware.RequestID. Used by: logging.
	RequestIDKey Key = "request_id"
)

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p authz.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// Principal returns the principal from the context. ok is false on
// unauthenticated requests.
func Principal(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(authz.Principal)
	return p, ok
}

// WithToken stores the raw bearer token in the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}

// Token returns the raw bearer token from the context, or "".
func Token(ctx context.Context) string {
	if t, ok := ctx.Value(TokenKey).(string); ok {
		return t
	}
	return ""
}
