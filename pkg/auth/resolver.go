// Package auth covers credentials: session tokens, password hashing, and
// resolving a bearer token into an authorization principal.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/store"
)

// ErrInvalidToken is returned for tokens that are malformed, unknown,
// expired, or revoked. Callers get one error for all four so responses
// cannot be used to probe which tokens exist.
var ErrInvalidToken = errors.New("invalid or expired token")

// PrincipalResolver turns bearer tokens into principals, with a small
// expiring cache in front of the database. The TTL bounds how long a role
// change or session revocation can lag.
type PrincipalResolver struct {
	stores *store.Stores
	cache  *expirable.LRU[string, authz.Principal]
}

// NewPrincipalResolver creates a resolver. cacheTTL <= 0 disables caching.
func NewPrincipalResolver(stores *store.Stores, cacheSize int, cacheTTL time.Duration) *PrincipalResolver {
	r := &PrincipalResolver{stores: stores}
	if cacheTTL > 0 {
		if cacheSize <= 0 {
			cacheSize = 1024
		}
		r.cache = expirable.NewLRU[string, authz.Principal](cacheSize, nil, cacheTTL)
	}
	return r
}

// Resolve validates the token and returns the principal behind it.
func (r *PrincipalResolver) Resolve(ctx context.Context, token string) (authz.Principal, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return authz.Principal{}, ErrInvalidToken
	}
	hash := HashToken(token)

	if r.cache != nil {
		if p, ok := r.cache.Get(hash); ok {
			return p, nil
		}
	}

	sess, err := r.stores.Sessions.GetByTokenHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return authz.Principal{}, ErrInvalidToken
	}
	if err != nil {
		return authz.Principal{}, fmt.Errorf("failed to look up session: %w", err)
	}
	if !sess.Valid(time.Now()) {
		return authz.Principal{}, ErrInvalidToken
	}

	p, err := r.stores.Accounts.Principal(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return authz.Principal{}, ErrInvalidToken
	}
	if err != nil {
		return authz.Principal{}, fmt.Errorf("failed to build principal: %w", err)
	}

	if r.cache != nil {
		r.cache.Add(hash, p)
	}
	return p, nil
}

// Forget drops a token's cached principal, used on logout so revocation
// takes effect immediately instead of at TTL expiry.
func (r *PrincipalResolver) Forget(token string) {
	if r.cache != nil {
		r.cache.Remove(HashToken(token))
	}
}
