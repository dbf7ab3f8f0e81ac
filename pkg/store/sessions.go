package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vigia-iot/vigia/pkg/model"
)

// SessionStore persists bearer-token sessions.
type SessionStore struct {
	db DB
}

// NewSessionStore creates a session store.
func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a session.
func (s *SessionStore) Create(ctx context.Context, sess *model.Session) error {
	now := time.Now().UTC()
	err := s.db.Writer().QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, token_hash, token_prefix, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, sess.UserID, sess.TokenHash, sess.TokenPrefix, now, sess.ExpiresAt.UTC()).Scan(&sess.ID)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	sess.CreatedAt = now
	return nil
}

// GetByTokenHash returns the session matching the token hash. Expired and
// revoked sessions are returned too; the caller decides validity so that
// an expired token and an unknown token can be logged apart.
func (s *SessionStore) GetByTokenHash(ctx context.Context, hash string) (*model.Session, error) {
	var sess model.Session
	err := s.db.Reader().QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, created_at, expires_at, revoked_at
		FROM sessions WHERE token_hash = $1
	`, hash).Scan(
		&sess.ID, &sess.UserID, &sess.TokenHash, &sess.TokenPrefix,
		&sess.CreatedAt, &sess.ExpiresAt, &sess.RevokedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// Revoke marks the session unusable. Revoking an already revoked or unknown
// token is a no-op so logout is idempotent.
func (s *SessionStore) Revoke(ctx context.Context, hash string) error {
	_, err := s.db.Writer().ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $1
		WHERE token_hash = $2 AND revoked_at IS NULL
	`, time.Now().UTC(), hash)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// CountActive returns the number of live sessions at now.
func (s *SessionStore) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.db.Reader().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE expires_at > $1 AND revoked_at IS NULL
	`, now.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return n, nil
}

// DeleteExpired removes sessions past their expiry. Run periodically.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.Writer().ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= $1", now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}
