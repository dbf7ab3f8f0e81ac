package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vigia-iot/vigia/pkg/alerts"
	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/store"
)

// ListAlerts returns alerts visible to the principal, newest first.
func (s *Service) ListAlerts(ctx context.Context, p authz.Principal, filter store.AlertFilter) ([]model.AlertWithDevice, error) {
	scope := authz.ScopeFilter(p, authz.ResourceAlert)
	out, err := s.stores.Alerts.List(ctx, scope, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return out, nil
}

// WeeklyAlerts is the seven-day alert summary.
type WeeklyAlerts struct {
	From   time.Time                `json:"from"`
	To     time.Time                `json:"to"`
	Counts map[model.Priority]int64 `json:"counts"`
	Alerts []model.AlertWithDevice  `json:"alerts"`
}

// AlertsThisWeek returns the alerts of the trailing seven days with
// per-priority counts. Every priority appears in the counts, zero-filled.
func (s *Service) AlertsThisWeek(ctx context.Context, p authz.Principal) (*WeeklyAlerts, error) {
	scope := authz.ScopeFilter(p, authz.ResourceAlert)
	from, to := alerts.WeeklyWindow(time.Now().UTC())

	counts, err := s.stores.Alerts.CountByPriority(ctx, scope, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count weekly alerts: %w", err)
	}
	list, err := s.stores.Alerts.List(ctx, scope, store.AlertFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly alerts: %w", err)
	}

	return &WeeklyAlerts{From: from, To: to, Counts: counts, Alerts: list}, nil
}

// RaiseAlert creates an alert for a device in the writer's organization.
func (s *Service) RaiseAlert(ctx context.Context, p authz.Principal, a *model.Alert) error {
	if !authz.CanCreate(p, authz.ResourceAlert) {
		return s.deny(authz.ResourceAlert, "create")
	}
	deviceScope := authz.ScopeFilter(p, authz.ResourceDevice)
	if err := s.stores.Alerts.Create(ctx, deviceScope, a); err != nil {
		return err
	}
	s.InvalidateDashboard(ctx, p.OrganizationID)
	return nil
}

// AcknowledgeAlerts marks the given alerts acknowledged in one atomic,
// scope-bounded update. Requires the acknowledge action (org admins and
// verifiers). IDs outside the principal's organization or already
// acknowledged are skipped silently; the returned count is what actually
// flipped.
func (s *Service) AcknowledgeAlerts(ctx context.Context, p authz.Principal, ids []int64) (int64, error) {
	if !authz.CanRunAction(p, authz.ActionAcknowledgeAlerts) {
		return 0, s.deny(authz.ResourceAlert, "acknowledge")
	}
	scope := authz.ScopeFilter(p, authz.ResourceAlert)

	n, err := s.stores.Alerts.AcknowledgeBulk(ctx, scope, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge alerts: %w", err)
	}
	if n > 0 {
		if s.metrics != nil {
			s.metrics.AlertsAcknowledgedTotal.Add(float64(n))
		}
		s.InvalidateDashboard(ctx, p.OrganizationID)
	}
	return n, nil
}
