package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
)

// OrganizationStore persists organizations.
type OrganizationStore struct {
	db DB
}

// NewOrganizationStore creates an organization store.
func NewOrganizationStore(db DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

// Create inserts an organization. Names are globally unique, including
// against soft-deleted rows.
func (s *OrganizationStore) Create(ctx context.Context, org *model.Organization) error {
	if err := org.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM organizations WHERE name = $1", org.Name,
	).Scan(&exists)
	if err == nil {
		return fmt.Errorf("organization %q: %w", org.Name, ErrDuplicate)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check organization name: %w", err)
	}

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (name, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, org.Name, now, now).Scan(&org.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("organization %q: %w", org.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}
	org.CreatedAt = now
	org.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns the organization with the given ID if the scope admits it.
// Organizations scope on their own id column.
func (s *OrganizationStore) Get(ctx context.Context, scope authz.Scope, id int64) (*model.Organization, error) {
	clause, scopeArgs := scopeClause(scope, "id", "", 1)
	args := append([]interface{}{id}, scopeArgs...)

	var org model.Organization
	err := s.db.Reader().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, name, created_at, updated_at, deleted_at
		FROM organizations
		WHERE id = $1 AND deleted_at IS NULL AND %s
	`, clause), args...).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// List returns organizations visible under the scope, sorted by name.
func (s *OrganizationStore) List(ctx context.Context, scope authz.Scope) ([]model.Organization, error) {
	clause, args := scopeClause(scope, "id", "", 0)
	rows, err := s.db.Reader().QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, created_at, updated_at, deleted_at
		FROM organizations
		WHERE deleted_at IS NULL AND %s
		ORDER BY name
	`, clause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var org model.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// Update renames an organization within the scope.
func (s *OrganizationStore) Update(ctx context.Context, scope authz.Scope, org *model.Organization) error {
	if err := org.Validate(); err != nil {
		return err
	}

	clause, scopeArgs := scopeClause(scope, "id", "", 3)
	args := append([]interface{}{org.Name, time.Now().UTC(), org.ID}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE organizations SET name = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("organization %q: %w", org.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to update organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks an organization deleted within the scope.
func (s *OrganizationStore) SoftDelete(ctx context.Context, scope authz.Scope, id int64) error {
	clause, scopeArgs := scopeClause(scope, "id", "", 2)
	args := append([]interface{}{time.Now().UTC(), id}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE organizations SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// findOrCreateOrganization returns the ID of the named organization,
// creating it when absent. The match is case-sensitive on the trimmed
// name, so padding cannot mint a lookalike organization. Runs inside the
// caller's transaction so registration is atomic.
func findOrCreateOrganization(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	name = strings.TrimSpace(name)
	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM organizations WHERE name = $1 AND deleted_at IS NULL", name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up organization: %w", err)
	}

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (name, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, name, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create organization: %w", err)
	}
	return id, nil
}
