// Package service implements the application operations on top of the
// store, enforcing the authorization rules before any query runs. Handlers
// never touch the store directly.
package service

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/cache"
	"github.com/vigia-iot/vigia/pkg/observability"
	"github.com/vigia-iot/vigia/pkg/store"
)

// ErrPermissionDenied is returned when the principal's role or organization
// does not admit the operation. Handlers map it to 403.
var ErrPermissionDenied = errors.New("permission denied")

// ErrDuplicateIdentity is returned when registration hits an existing email
// or username.
var ErrDuplicateIdentity = errors.New("identity already exists")

// ErrInvalidCredentials is returned on failed login. Unknown email and
// wrong password are indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service executes application operations for authenticated principals.
type Service struct {
	stores  *store.Stores
	cache   *cache.Client
	metrics *observability.Metrics

	// dashboardTTL holds nanoseconds; atomic because config reload can
	// change it while requests read it.
	dashboardTTL atomic.Int64
	sessionTTL   time.Duration
}

// Options tunes service behavior.
type Options struct {
	// DashboardTTL bounds dashboard cache staleness. Zero disables caching.
	DashboardTTL time.Duration
	// SessionTTL is the lifetime of login sessions.
	SessionTTL time.Duration
	// Metrics may be nil to skip instrumentation.
	Metrics *observability.Metrics
}

// New creates a service. cacheClient may be nil to disable caching.
func New(stores *store.Stores, cacheClient *cache.Client, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	s := &Service{
		stores:     stores,
		cache:      cacheClient,
		metrics:    opts.Metrics,
		sessionTTL: opts.SessionTTL,
	}
	s.dashboardTTL.Store(int64(opts.DashboardTTL))
	return s
}

// SetDashboardTTL changes the dashboard cache TTL at runtime, used by
// config reload. Zero or negative disables caching.
func (s *Service) SetDashboardTTL(d time.Duration) {
	s.dashboardTTL.Store(int64(d))
}

func (s *Service) dashboardCacheTTL() time.Duration {
	return time.Duration(s.dashboardTTL.Load())
}

// deny records the denial and returns ErrPermissionDenied.
func (s *Service) deny(resource authz.Resource, operation string) error {
	if s.metrics != nil {
		s.metrics.AuthzDenialsTotal.WithLabelValues(string(resource), operation).Inc()
	}
	return ErrPermissionDenied
}

// Stores exposes the underlying stores for wiring seed and admin tooling.
func (s *Service) Stores() *store.Stores {
	return s.stores
}
