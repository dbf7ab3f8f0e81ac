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

// MeasurementStore persists device readings.
type MeasurementStore struct {
	db DB
}

// NewMeasurementStore creates a measurement store.
func NewMeasurementStore(db DB) *MeasurementStore {
	return &MeasurementStore{db: db}
}

// MeasurementFilter narrows measurement listings. Nil fields are ignored.
// Category and zone narrow through the owning device.
type MeasurementFilter struct {
	DeviceID   *int64
	CategoryID *int64
	ZoneID     *int64
	Limit      int
}

// Create inserts a measurement for a device the scope admits. deviceScope
// is the caller's device visibility scope (direct resolution), rendered
// against the devices table. The device check and the insert share a
// transaction so the reading can never land on a device outside the
// writer's organization.
func (s *MeasurementStore) Create(ctx context.Context, deviceScope authz.Scope, m *model.Measurement) error {
	if err := m.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	clause, scopeArgs := scopeClause(deviceScope, "organization_id", "", 1)
	args := append([]interface{}{m.DeviceID}, scopeArgs...)

	var exists int
	err = tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT 1 FROM devices WHERE id = $1 AND deleted_at IS NULL AND %s", clause,
	), args...).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check device: %w", err)
	}

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO measurements (device_id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.DeviceID, m.Value, now, now).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to create measurement: %w", err)
	}
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns a measurement with its organization resolved through the
// owning device, if the scope admits it.
func (s *MeasurementStore) Get(ctx context.Context, scope authz.Scope, id int64) (*model.OwnedMeasurement, error) {
	clause, scopeArgs := scopeClause(scope, "", "m.device_id", 1)
	args := append([]interface{}{id}, scopeArgs...)

	var m model.OwnedMeasurement
	err := s.db.Reader().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT m.id, m.device_id, m.value, m.created_at, m.updated_at, m.deleted_at, d.organization_id
		FROM measurements m
		JOIN devices d ON d.id = m.device_id
		WHERE m.id = $1 AND m.deleted_at IS NULL AND %s
	`, clause), args...).Scan(
		&m.ID, &m.DeviceID, &m.Value, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt, &m.OrganizationID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get measurement: %w", err)
	}
	return &m, nil
}

// List returns measurements visible under the scope, newest first, joined
// with the device name. A zero limit means no limit.
func (s *MeasurementStore) List(ctx context.Context, scope authz.Scope, filter MeasurementFilter) ([]model.MeasurementWithDevice, error) {
	clause, args := scopeClause(scope, "", "m.device_id", 0)

	query := fmt.Sprintf(`
		SELECT m.id, m.device_id, m.value, m.created_at, m.updated_at, m.deleted_at, d.name
		FROM measurements m
		JOIN devices d ON d.id = m.device_id
		WHERE m.deleted_at IS NULL AND %s
	`, clause)
	if filter.DeviceID != nil {
		query += fmt.Sprintf(" AND m.device_id = $%d", len(args)+1)
		args = append(args, *filter.DeviceID)
	}
	if filter.CategoryID != nil {
		query += fmt.Sprintf(" AND d.category_id = $%d", len(args)+1)
		args = append(args, *filter.CategoryID)
	}
	if filter.ZoneID != nil {
		query += fmt.Sprintf(" AND d.zone_id = $%d", len(args)+1)
		args = append(args, *filter.ZoneID)
	}
	query += " ORDER BY m.created_at DESC, m.id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}
	defer rows.Close()

	var out []model.MeasurementWithDevice
	for rows.Next() {
		var m model.MeasurementWithDevice
		if err := rows.Scan(
			&m.ID, &m.DeviceID, &m.Value, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt, &m.DeviceName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Update rewrites a measurement's value within the scope. The owning device
// is immutable after creation.
func (s *MeasurementStore) Update(ctx context.Context, scope authz.Scope, m *model.Measurement) error {
	if err := m.Validate(); err != nil {
		return err
	}

	clause, scopeArgs := scopeClause(scope, "", "measurements.device_id", 3)
	args := append([]interface{}{m.Value, time.Now().UTC(), m.ID}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE measurements SET value = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		return fmt.Errorf("failed to update measurement: %w", err)
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

// SoftDelete marks a measurement deleted within the scope.
func (s *MeasurementStore) SoftDelete(ctx context.Context, scope authz.Scope, id int64) error {
	clause, scopeArgs := scopeClause(scope, "", "measurements.device_id", 2)
	args := append([]interface{}{time.Now().UTC(), id}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE measurements SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		return fmt.Errorf("failed to delete measurement: %w", err)
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
