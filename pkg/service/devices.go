package service

import (
	"context"
	"fmt"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/store"
)

const (
	deviceDetailMeasurementLimit = 20
	deviceDetailAlertLimit       = 10
)

// DeviceDetail is a device with its recent activity.
type DeviceDetail struct {
	Device       model.Device                  `json:"device"`
	Measurements []model.MeasurementWithDevice `json:"measurements"`
	Alerts       []model.AlertWithDevice       `json:"alerts"`
}

// ListDevices returns the devices the principal may see, optionally
// narrowed by category or zone.
func (s *Service) ListDevices(ctx context.Context, p authz.Principal, filter store.DeviceFilter) ([]model.Device, error) {
	scope := authz.ScopeFilter(p, authz.ResourceDevice)
	devices, err := s.stores.Devices.List(ctx, scope, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// GetDevice returns one device with its recent measurements and alerts. A
// device outside the principal's organization reads as not found.
func (s *Service) GetDevice(ctx context.Context, p authz.Principal, id int64) (*DeviceDetail, error) {
	deviceScope := authz.ScopeFilter(p, authz.ResourceDevice)
	device, err := s.stores.Devices.Get(ctx, deviceScope, id)
	if err != nil {
		return nil, err
	}

	measurements, err := s.stores.Measurements.List(ctx,
		authz.ScopeFilter(p, authz.ResourceMeasurement),
		store.MeasurementFilter{DeviceID: &device.ID, Limit: deviceDetailMeasurementLimit},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list device measurements: %w", err)
	}
	deviceAlerts, err := s.stores.Alerts.List(ctx,
		authz.ScopeFilter(p, authz.ResourceAlert),
		store.AlertFilter{DeviceID: &device.ID, Limit: deviceDetailAlertLimit},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list device alerts: %w", err)
	}

	return &DeviceDetail{
		Device:       *device,
		Measurements: measurements,
		Alerts:       deviceAlerts,
	}, nil
}

// ListMeasurements returns measurements visible to the principal, newest
// first.
func (s *Service) ListMeasurements(ctx context.Context, p authz.Principal, filter store.MeasurementFilter) ([]model.MeasurementWithDevice, error) {
	scope := authz.ScopeFilter(p, authz.ResourceMeasurement)
	out, err := s.stores.Measurements.List(ctx, scope, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}
	return out, nil
}

// RecordMeasurement stores a reading for a device in the writer's
// organization. Creation is an admin capability like every other write.
func (s *Service) RecordMeasurement(ctx context.Context, p authz.Principal, m *model.Measurement) error {
	if !authz.CanCreate(p, authz.ResourceMeasurement) {
		return s.deny(authz.ResourceMeasurement, "create")
	}
	deviceScope := authz.ScopeFilter(p, authz.ResourceDevice)
	if err := s.stores.Measurements.Create(ctx, deviceScope, m); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.MeasurementsIngestedTotal.Inc()
	}
	s.InvalidateDashboard(ctx, p.OrganizationID)
	return nil
}
