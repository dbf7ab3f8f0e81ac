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

// AlertStore persists device alerts.
type AlertStore struct {
	db DB
}

// NewAlertStore creates an alert store.
func NewAlertStore(db DB) *AlertStore {
	return &AlertStore{db: db}
}

// AlertFilter narrows alert listings. Nil fields are ignored. Category and
// zone narrow through the owning device.
type AlertFilter struct {
	DeviceID     *int64
	CategoryID   *int64
	ZoneID       *int64
	Priority     *model.Priority
	Acknowledged *bool
	From         *time.Time
	To           *time.Time
	Limit        int
}

// Create inserts an alert for a device the scope admits. deviceScope is the
// caller's device visibility scope, rendered against the devices table.
func (s *AlertStore) Create(ctx context.Context, deviceScope authz.Scope, a *model.Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	clause, scopeArgs := scopeClause(deviceScope, "organization_id", "", 1)
	args := append([]interface{}{a.DeviceID}, scopeArgs...)

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
		INSERT INTO alerts (device_id, message, priority, acknowledged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, a.DeviceID, a.Message, string(a.Priority), a.Acknowledged, now, now).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	a.CreatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns an alert with its organization resolved through the owning
// device, if the scope admits it.
func (s *AlertStore) Get(ctx context.Context, scope authz.Scope, id int64) (*model.OwnedAlert, error) {
	clause, scopeArgs := scopeClause(scope, "", "a.device_id", 1)
	args := append([]interface{}{id}, scopeArgs...)

	var a model.OwnedAlert
	var priority string
	err := s.db.Reader().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT a.id, a.device_id, a.message, a.priority, a.acknowledged, a.created_at, d.organization_id
		FROM alerts a
		JOIN devices d ON d.id = a.device_id
		WHERE a.id = $1 AND a.deleted_at IS NULL AND %s
	`, clause), args...).Scan(
		&a.ID, &a.DeviceID, &a.Message, &priority, &a.Acknowledged, &a.CreatedAt, &a.OrganizationID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	a.Priority = model.Priority(priority)
	return &a, nil
}

// List returns alerts visible under the scope, newest first, joined with
// the device name. A zero limit means no limit.
func (s *AlertStore) List(ctx context.Context, scope authz.Scope, filter AlertFilter) ([]model.AlertWithDevice, error) {
	clause, args := scopeClause(scope, "", "a.device_id", 0)

	query := fmt.Sprintf(`
		SELECT a.id, a.device_id, a.message, a.priority, a.acknowledged, a.created_at, d.name
		FROM alerts a
		JOIN devices d ON d.id = a.device_id
		WHERE a.deleted_at IS NULL AND %s
	`, clause)
	if filter.DeviceID != nil {
		query += fmt.Sprintf(" AND a.device_id = $%d", len(args)+1)
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
	if filter.Priority != nil {
		query += fmt.Sprintf(" AND a.priority = $%d", len(args)+1)
		args = append(args, string(*filter.Priority))
	}
	if filter.Acknowledged != nil {
		query += fmt.Sprintf(" AND a.acknowledged = $%d", len(args)+1)
		args = append(args, *filter.Acknowledged)
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND a.created_at >= $%d", len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND a.created_at <= $%d", len(args)+1)
		args = append(args, *filter.To)
	}
	query += " ORDER BY a.created_at DESC, a.id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []model.AlertWithDevice
	for rows.Next() {
		var a model.AlertWithDevice
		var priority string
		if err := rows.Scan(
			&a.ID, &a.DeviceID, &a.Message, &priority, &a.Acknowledged, &a.CreatedAt, &a.DeviceName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Priority = model.Priority(priority)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AcknowledgeBulk marks the given alerts acknowledged in one scope-bounded
// UPDATE. IDs outside the scope, already acknowledged, or nonexistent are
// silently skipped; the transition only ever moves false to true. Returns
// the number of alerts actually flipped.
func (s *AlertStore) AcknowledgeBulk(ctx context.Context, scope authz.Scope, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := []interface{}{time.Now().UTC()}
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}

	clause, scopeArgs := scopeClause(scope, "", "alerts.device_id", len(args))
	args = append(args, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE alerts SET acknowledged = TRUE, updated_at = $1
		WHERE id IN (%s)
		  AND acknowledged = FALSE
		  AND deleted_at IS NULL
		  AND %s
	`, strings.Join(placeholders, ", "), clause), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// CountByPriority returns alert counts per priority within [from, to] under
// the scope. Every priority level appears in the result, zero-filled when
// no alerts match.
func (s *AlertStore) CountByPriority(ctx context.Context, scope authz.Scope, from, to time.Time) (map[model.Priority]int64, error) {
	counts := make(map[model.Priority]int64, len(model.Priorities()))
	for _, p := range model.Priorities() {
		counts[p] = 0
	}

	clause, scopeArgs := scopeClause(scope, "", "a.device_id", 2)
	args := append([]interface{}{from, to}, scopeArgs...)

	rows, err := s.db.Reader().QueryContext(ctx, fmt.Sprintf(`
		SELECT a.priority, COUNT(*)
		FROM alerts a
		WHERE a.created_at >= $1 AND a.created_at <= $2
		  AND a.deleted_at IS NULL
		  AND %s
		GROUP BY a.priority
	`, clause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by priority: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var priority string
		var count int64
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("failed to scan priority count: %w", err)
		}
		counts[model.Priority(priority)] = count
	}
	return counts, rows.Err()
}

// Update rewrites an alert's message within the scope. Priority and the
// owning device are immutable after creation; acknowledged only moves
// through AcknowledgeBulk.
func (s *AlertStore) Update(ctx context.Context, scope authz.Scope, a *model.Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}

	clause, scopeArgs := scopeClause(scope, "", "alerts.device_id", 3)
	args := append([]interface{}{a.Message, time.Now().UTC(), a.ID}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE alerts SET message = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
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

// SoftDelete marks an alert deleted within the scope.
func (s *AlertStore) SoftDelete(ctx context.Context, scope authz.Scope, id int64) error {
	clause, scopeArgs := scopeClause(scope, "", "alerts.device_id", 2)
	args := append([]interface{}{time.Now().UTC(), id}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE alerts SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL AND %s
	`, clause), args...)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
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
