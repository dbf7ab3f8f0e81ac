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

// ZoneStore persists physical zones.
type ZoneStore struct {
	db DB
}

// NewZoneStore creates a zone store.
func NewZoneStore(db DB) *ZoneStore {
	return &ZoneStore{db: db}
}

// Create inserts a zone. Names are unique per organization.
func (s *ZoneStore) Create(ctx context.Context, zone *model.Zone) error {
	if err := zone.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM zones WHERE organization_id = $1 AND name = $2",
		zone.OrganizationID, zone.Name,
	).Scan(&exists)
	if err == nil {
		return fmt.Errorf("zone %q: %w", zone.Name, ErrDuplicate)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check zone name: %w", err)
	}

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO zones (name, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, zone.Name, zone.OrganizationID, now, now).Scan(&zone.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("zone %q: %w", zone.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create zone: %w", err)
	}
	zone.CreatedAt = now
	zone.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns the zone with the given ID if the scope admits it.
func (s *ZoneStore) Get(ctx context.Context, scope authz.Scope, id int64) (*model.Zone, error) {
	clause, scopeArgs := scopeClause(scope, "organization_id", "", 1)
	args := append([]interface{}{id}, scopeArgs...)

	var zone model.Zone
	err := s.db.Reader().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, name, organization_id, created_at, updated_at, deleted_at
		FROM zones
		WHERE id = $1 AND deleted_at IS NULL AND %s
	`, clause), args...).Scan(
		&zone.ID, &zone.Name, &zone.OrganizationID, &zone.CreatedAt, &zone.UpdatedAt, &zone.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	return &zone, nil
}

// List returns zones visible under the scope, sorted by name.
func (s *ZoneStore) List(ctx context.Context, scope authz.Scope) ([]model.Zone, error) {
	clause, args := scopeClause(scope, "organization_id", "", 0)
	rows, err := s.db.Reader().QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, organization_id, created_at, updated_at, deleted_at
		FROM zones
		WHERE deleted_at IS NULL AND %s
		ORDER BY name
	`, clause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		var zone model.Zone
		if err := rows.Scan(&zone.ID, &zone.Name, &zone.OrganizationID, &zone.CreatedAt, &zone.UpdatedAt, &zone.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

// Update renames a zone within the scope.
func (s *ZoneStore) Update(ctx context.Context, scope authz.Scope, zone *model.Zone) error {
	if err := zone.Validate(); err != nil {
		return err
	}

	clause, scopeArgs := scopeClause(scope, "organization_id", "", 3)
	args := append([]interface{}{zone.Name, time.Now().UTC(), zone.ID}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE zones SET name = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("zone %q: %w", zone.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to update zone: %w", err)
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

// SoftDelete marks a zone deleted within the scope.
func (s *ZoneStore) SoftDelete(ctx context.Context, scope authz.Scope, id int64) error {
	clause, scopeArgs := scopeClause(scope, "organization_id", "", 2)
	args := append([]interface{}{time.Now().UTC(), id}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE zones SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		return fmt.Errorf("failed to delete zone: %w", err)
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
