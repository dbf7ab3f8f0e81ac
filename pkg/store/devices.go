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

// DeviceStore persists devices.
type DeviceStore struct {
	db DB
}

// NewDeviceStore creates a device store.
func NewDeviceStore(db DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// DeviceFilter narrows device listings. Nil fields are ignored. Filters
// only ever narrow the scope; they cannot widen it.
type DeviceFilter struct {
	CategoryID *int64
	ZoneID     *int64
}

// GroupCount is one row of a grouped count, keyed by the group's name.
type GroupCount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// checkCoherence verifies that the device's category and zone exist and
// belong to the device's own organization. A mismatch is reported as a
// validation error on the offending field, not a permission error, because
// the caller may legitimately see the referenced row.
func checkCoherence(ctx context.Context, tx *sql.Tx, d *model.Device) error {
	var catOrg int64
	err := tx.QueryRowContext(ctx,
		"SELECT organization_id FROM categories WHERE id = $1 AND deleted_at IS NULL", d.CategoryID,
	).Scan(&catOrg)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewValidationError("category_id", "category does not exist")
	}
	if err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if catOrg != d.OrganizationID {
		return model.NewValidationError("category_id", "category belongs to a different organization")
	}

	var zoneOrg int64
	err = tx.QueryRowContext(ctx,
		"SELECT organization_id FROM zones WHERE id = $1 AND deleted_at IS NULL", d.ZoneID,
	).Scan(&zoneOrg)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewValidationError("zone_id", "zone does not exist")
	}
	if err != nil {
		return fmt.Errorf("failed to check zone: %w", err)
	}
	if zoneOrg != d.OrganizationID {
		return model.NewValidationError("zone_id", "zone belongs to a different organization")
	}
	return nil
}

// Create inserts a device. The category and zone must belong to the same
// organization as the device, and (organization, name) is unique.
func (s *DeviceStore) Create(ctx context.Context, d *model.Device) error {
	if err := d.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkCoherence(ctx, tx, d); err != nil {
		return err
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM devices WHERE organization_id = $1 AND name = $2",
		d.OrganizationID, d.Name,
	).Scan(&exists)
	if err == nil {
		return fmt.Errorf("device %q: %w", d.Name, ErrDuplicate)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check device name: %w", err)
	}

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO devices (name, serial, organization_id, category_id, zone_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, d.Name, d.Serial, d.OrganizationID, d.CategoryID, d.ZoneID, now, now).Scan(&d.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("device %q: %w", d.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create device: %w", err)
	}
	d.CreatedAt = now
	d.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns the device with the given ID if the scope admits it.
func (s *DeviceStore) Get(ctx context.Context, scope authz.Scope, id int64) (*model.Device, error) {
	clause, scopeArgs := scopeClause(scope, "organization_id", "", 1)
	args := append([]interface{}{id}, scopeArgs...)

	var d model.Device
	err := s.db.Reader().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, name, serial, organization_id, category_id, zone_id, created_at, updated_at, deleted_at
		FROM devices
		WHERE id = $1 AND deleted_at IS NULL AND %s
	`, clause), args...).Scan(
		&d.ID, &d.Name, &d.Serial, &d.OrganizationID, &d.CategoryID, &d.ZoneID,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &d, nil
}

// List returns devices visible under the scope, optionally narrowed by
// filter, sorted by name.
func (s *DeviceStore) List(ctx context.Context, scope authz.Scope, filter DeviceFilter) ([]model.Device, error) {
	clause, args := scopeClause(scope, "organization_id", "", 0)

	query := fmt.Sprintf(`
		SELECT id, name, serial, organization_id, category_id, zone_id, created_at, updated_at, deleted_at
		FROM devices
		WHERE deleted_at IS NULL AND %s
	`, clause)
	if filter.CategoryID != nil {
		query += fmt.Sprintf(" AND category_id = $%d", len(args)+1)
		args = append(args, *filter.CategoryID)
	}
	if filter.ZoneID != nil {
		query += fmt.Sprintf(" AND zone_id = $%d", len(args)+1)
		args = append(args, *filter.ZoneID)
	}
	query += " ORDER BY name"

	rows, err := s.db.Reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Serial, &d.OrganizationID, &d.CategoryID, &d.ZoneID,
			&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// Update rewrites a device's editable fields within the scope, re-checking
// category and zone coherence.
func (s *DeviceStore) Update(ctx context.Context, scope authz.Scope, d *model.Device) error {
	if err := d.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkCoherence(ctx, tx, d); err != nil {
		return err
	}

	clause, scopeArgs := scopeClause(scope, "organization_id", "", 6)
	args := append([]interface{}{d.Name, d.Serial, d.CategoryID, d.ZoneID, time.Now().UTC(), d.ID}, scopeArgs...)

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE devices SET name = $1, serial = $2, category_id = $3, zone_id = $4, updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("device %q: %w", d.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to update device: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SoftDelete marks a device deleted within the scope.
func (s *DeviceStore) SoftDelete(ctx context.Context, scope authz.Scope, id int64) error {
	clause, scopeArgs := scopeClause(scope, "organization_id", "", 2)
	args := append([]interface{}{time.Now().UTC(), id}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE devices SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
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

// CountByCategory returns per-category device counts within the scope.
// Categories with no devices are omitted.
func (s *DeviceStore) CountByCategory(ctx context.Context, scope authz.Scope) ([]GroupCount, error) {
	clause, args := scopeClause(scope, "d.organization_id", "", 0)
	rows, err := s.db.Reader().QueryContext(ctx, fmt.Sprintf(`
		SELECT c.id, c.name, COUNT(d.id)
		FROM devices d
		JOIN categories c ON c.id = d.category_id
		WHERE d.deleted_at IS NULL AND %s
		GROUP BY c.id, c.name
		ORDER BY c.name
	`, clause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count devices by category: %w", err)
	}
	defer rows.Close()
	return scanGroupCounts(rows)
}

// CountByZone returns per-zone device counts within the scope.
func (s *DeviceStore) CountByZone(ctx context.Context, scope authz.Scope) ([]GroupCount, error) {
	clause, args := scopeClause(scope, "d.organization_id", "", 0)
	rows, err := s.db.Reader().QueryContext(ctx, fmt.Sprintf(`
		SELECT z.id, z.name, COUNT(d.id)
		FROM devices d
		JOIN zones z ON z.id = d.zone_id
		WHERE d.deleted_at IS NULL AND %s
		GROUP BY z.id, z.name
		ORDER BY z.name
	`, clause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count devices by zone: %w", err)
	}
	defer rows.Close()
	return scanGroupCounts(rows)
}

func scanGroupCounts(rows *sql.Rows) ([]GroupCount, error) {
	var counts []GroupCount
	for rows.Next() {
		var gc GroupCount
		if err := rows.Scan(&gc.ID, &gc.Name, &gc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan group count: %w", err)
		}
		counts = append(counts, gc)
	}
	return counts, rows.Err()
}
