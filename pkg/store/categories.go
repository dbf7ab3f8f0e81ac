package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
)

// CategoryStore persists device categories.
type CategoryStore struct {
	db DB
}

// NewCategoryStore creates a category store.
func NewCategoryStore(db DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// Create inserts a category. Names are unique per organization, so two
// organizations may each have a "Sensors" category.
func (s *CategoryStore) Create(ctx context.Context, cat *model.Category) error {
	if err := cat.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM categories WHERE organization_id = $1 AND name = $2",
		cat.OrganizationID, cat.Name,
	).Scan(&exists)
	if err == nil {
		return fmt.Errorf("category %q: %w", cat.Name, ErrDuplicate)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check category name: %w", err)
	}

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO categories (name, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, cat.Name, cat.OrganizationID, now, now).Scan(&cat.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", cat.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	cat.CreatedAt = now
	cat.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns the category with the given ID if the scope admits it.
func (s *CategoryStore) Get(ctx context.Context, scope authz.Scope, id int64) (*model.Category, error) {
	clause, scopeArgs := scopeClause(scope, "organization_id", "", 1)
	args := append([]interface{}{id}, scopeArgs...)

	var cat model.Category
	err := s.db.Reader().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, name, organization_id, created_at, updated_at, deleted_at
		FROM categories
		WHERE id = $1 AND deleted_at IS NULL AND %s
	`, clause), args...).Scan(
		&cat.ID, &cat.Name, &cat.OrganizationID, &cat.CreatedAt, &cat.UpdatedAt, &cat.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &cat, nil
}

// List returns categories visible under the scope, sorted by name.
func (s *CategoryStore) List(ctx context.Context, scope authz.Scope) ([]model.Category, error) {
	clause, args := scopeClause(scope, "organization_id", "", 0)
	rows, err := s.db.Reader().QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, organization_id, created_at, updated_at, deleted_at
		FROM categories
		WHERE deleted_at IS NULL AND %s
		ORDER BY name
	`, clause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.OrganizationID, &cat.CreatedAt, &cat.UpdatedAt, &cat.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

// Update renames a category within the scope. The organization reference is
// not updatable here; reassigning tenancy is not a supported edit.
func (s *CategoryStore) Update(ctx context.Context, scope authz.Scope, cat *model.Category) error {
	if err := cat.Validate(); err != nil {
		return err
	}

	clause, scopeArgs := scopeClause(scope, "organization_id", "", 3)
	args := append([]interface{}{cat.Name, time.Now().UTC(), cat.ID}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE categories SET name = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", cat.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to update category: %w", err)
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

// SoftDelete marks a category deleted within the scope.
func (s *CategoryStore) SoftDelete(ctx context.Context, scope authz.Scope, id int64) error {
	clause, scopeArgs := scopeClause(scope, "organization_id", "", 2)
	args := append([]interface{}{time.Now().UTC(), id}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE categories SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
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
