package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB provides reader and writer database handles. Production code uses a
// ConnectionManager; tests satisfy it with a Single wrapping one sqlite
// in-memory handle.
type DB interface {
	// Writer returns the connection used for all writes.
	Writer() *sql.DB
	// Reader returns a connection suitable for reads. It may be a replica
	// and may lag the writer slightly.
	Reader() *sql.DB
}

// ConnectionConfig holds database connection configuration.
type ConnectionConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// ConnectionManager manages a PostgreSQL primary and optional read replicas.
// Reads are distributed across replicas round-robin; the primary serves
// reads when no replica is healthy.
type ConnectionManager struct {
	primary  *sql.DB
	replicas []*sql.DB
	current  uint32
	mu       sync.RWMutex
}

// NewConnectionManager opens and verifies the primary connection, then
// connects to any configured replicas. A replica that cannot be reached is
// skipped rather than failing startup.
func NewConnectionManager(cfg ConnectionConfig) (*ConnectionManager, error) {
	primary, err := sql.Open("postgres", cfg.PrimaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary connection: %w", err)
	}

	primary.SetMaxOpenConns(cfg.MaxConns)
	primary.SetMaxIdleConns(cfg.MinConns)
	primary.SetConnMaxLifetime(cfg.MaxLifetime)
	primary.SetConnMaxIdleTime(cfg.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := primary.PingContext(ctx); err != nil {
		primary.Close()
		return nil, fmt.Errorf("failed to ping primary: %w", err)
	}

	cm := &ConnectionManager{primary: primary}

	for _, url := range cfg.ReplicaURLs {
		replica, err := sql.Open("postgres", url)
		if err != nil {
			continue
		}

		// Replicas only serve reads; give them a smaller pool.
		maxConns := cfg.MaxConns / 2
		if maxConns < 2 {
			maxConns = 2
		}
		replica.SetMaxOpenConns(maxConns)
		replica.SetMaxIdleConns(cfg.MinConns)
		replica.SetConnMaxLifetime(cfg.MaxLifetime)
		replica.SetConnMaxIdleTime(cfg.MaxIdleTime)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.Timeout)
		err = replica.PingContext(pingCtx)
		pingCancel()
		if err != nil {
			replica.Close()
			continue
		}

		cm.replicas = append(cm.replicas, replica)
	}

	return cm, nil
}

// Writer returns the primary connection.
func (cm *ConnectionManager) Writer() *sql.DB {
	return cm.primary
}

// Reader returns a replica selected round-robin, or the primary when no
// replicas are available.
func (cm *ConnectionManager) Reader() *sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.replicas) == 0 {
		return cm.primary
	}
	idx := atomic.AddUint32(&cm.current, 1)
	return cm.replicas[int(idx%uint32(len(cm.replicas)))]
}

// HealthCheck pings the primary and all replicas. A dead replica set with a
// live primary is reported as an error so operators notice the degradation,
// even though reads still work through the primary.
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}

	cm.mu.RLock()
	replicas := make([]*sql.DB, len(cm.replicas))
	copy(replicas, cm.replicas)
	cm.mu.RUnlock()

	var unhealthy []string
	for i, replica := range replicas {
		if err := replica.PingContext(ctx); err != nil {
			unhealthy = append(unhealthy, fmt.Sprintf("replica-%d", i))
		}
	}
	if len(unhealthy) > 0 && len(unhealthy) == len(replicas) {
		return fmt.Errorf("all replicas unhealthy: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// Close closes the primary and all replica connections.
func (cm *ConnectionManager) Close() error {
	var errs []error

	if err := cm.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close error: %w", err))
	}

	cm.mu.Lock()
	replicas := cm.replicas
	cm.replicas = nil
	cm.mu.Unlock()

	for i, replica := range replicas {
		if err := replica.Close(); err != nil {
			errs = append(errs, fmt.Errorf("replica-%d close error: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("connection close errors: %v", errs)
	}
	return nil
}

// ParseReplicaURLs parses a comma-separated list of replica URLs.
func ParseReplicaURLs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, url := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Single adapts one database handle to the DB interface. Used by tests and
// by deployments without a replica.
type Single struct {
	Handle *sql.DB
}

// NewSingle wraps db so reads and writes share the same handle.
func NewSingle(db *sql.DB) Single { return Single{Handle: db} }

// Writer returns the wrapped handle.
func (s Single) Writer() *sql.DB { return s.Handle }

// Reader returns the wrapped handle.
func (s Single) Reader() *sql.DB { return s.Handle }
