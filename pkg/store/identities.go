package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vigia-iot/vigia/pkg/model"
)

// IdentityStore persists login identities.
type IdentityStore struct {
	db DB
}

// NewIdentityStore creates an identity store.
func NewIdentityStore(db DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// Create inserts an identity. Email and username are globally unique.
func (s *IdentityStore) Create(ctx context.Context, ident *model.Identity) error {
	tx, err := s.db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertIdentity(ctx, tx, ident); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// insertIdentity does the duplicate check and insert inside the caller's
// transaction. Shared with registration.
func insertIdentity(ctx context.Context, tx *sql.Tx, ident *model.Identity) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE email = $1 OR username = $2",
		ident.Email, ident.Username,
	).Scan(&exists)
	if err == nil {
		return fmt.Errorf("identity %q: %w", ident.Email, ErrDuplicate)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check identity: %w", err)
	}

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, username, password_hash, is_superuser, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, ident.Email, ident.Username, ident.PasswordHash, ident.IsSuperuser, ident.IsActive, now, now).Scan(&ident.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("identity %q: %w", ident.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	ident.CreatedAt = now
	ident.UpdatedAt = now
	return nil
}

// GetByEmail returns the identity with the given email.
func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return s.getIdentity(ctx, "email = $1", email)
}

// GetByID returns the identity with the given ID.
func (s *IdentityStore) GetByID(ctx context.Context, id int64) (*model.Identity, error) {
	return s.getIdentity(ctx, "id = $1", id)
}

func (s *IdentityStore) getIdentity(ctx context.Context, where string, arg interface{}) (*model.Identity, error) {
	var ident model.Identity
	err := s.db.Reader().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, email, username, password_hash, is_superuser, is_active, created_at, updated_at, last_login_at
		FROM users WHERE %s
	`, where), arg).Scan(
		&ident.ID, &ident.Email, &ident.Username, &ident.PasswordHash,
		&ident.IsSuperuser, &ident.IsActive, &ident.CreatedAt, &ident.UpdatedAt, &ident.LastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return &ident, nil
}

// UpdateLastLogin records a successful login.
func (s *IdentityStore) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.Writer().ExecContext(ctx,
		"UPDATE users SET last_login_at = $1 WHERE id = $2", at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
