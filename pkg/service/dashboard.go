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

const (
	dashboardMeasurementLimit = 10
	dashboardAlertLimit       = 5
)

// DashboardFilter narrows the dashboard to one category and/or zone.
// Filters AND together and only ever narrow the principal's visibility.
type DashboardFilter struct {
	CategoryID *int64
	ZoneID     *int64
}

// Dashboard is the aggregated landing view. Every section is computed under
// the same scope, so no section can show data another section hides.
type Dashboard struct {
	DevicesByCategory  []store.GroupCount            `json:"devices_by_category"`
	DevicesByZone      []store.GroupCount            `json:"devices_by_zone"`
	LatestMeasurements []model.MeasurementWithDevice `json:"latest_measurements"`
	RecentAlerts       []model.AlertWithDevice       `json:"recent_alerts"`
	WeekAlertCounts    map[model.Priority]int64      `json:"week_alert_counts"`
	WeekFrom           time.Time                     `json:"week_from"`
	WeekTo             time.Time                     `json:"week_to"`
}

// GetDashboard assembles the dashboard for the principal. Unfiltered
// dashboards are cached per organization; filtered requests always hit the
// database because the filter space is unbounded. A principal with no
// organization gets an empty dashboard, not an error.
func (s *Service) GetDashboard(ctx context.Context, p authz.Principal, filter DashboardFilter) (*Dashboard, error) {
	cacheKey := ""
	ttl := s.dashboardCacheTTL()
	if ttl > 0 && filter.CategoryID == nil && filter.ZoneID == nil {
		cacheKey = dashboardCacheKey(p)
		var cached Dashboard
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			if s.metrics != nil {
				s.metrics.CacheHitsTotal.WithLabelValues("dashboard").Inc()
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMissesTotal.WithLabelValues("dashboard").Inc()
		}
	}

	deviceScope := authz.ScopeFilter(p, authz.ResourceDevice)
	measurementScope := authz.ScopeFilter(p, authz.ResourceMeasurement)
	alertScope := authz.ScopeFilter(p, authz.ResourceAlert)

	byCategory, err := s.stores.Devices.CountByCategory(ctx, deviceScope)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate devices by category: %w", err)
	}
	byZone, err := s.stores.Devices.CountByZone(ctx, deviceScope)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate devices by zone: %w", err)
	}
	if filter.CategoryID != nil || filter.ZoneID != nil {
		devices, err := s.stores.Devices.List(ctx, deviceScope, store.DeviceFilter{
			CategoryID: filter.CategoryID,
			ZoneID:     filter.ZoneID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list filtered devices: %w", err)
		}
		byCategory, byZone = recountGroups(byCategory, byZone, devices)
	}

	latest, err := s.stores.Measurements.List(ctx, measurementScope, store.MeasurementFilter{
		CategoryID: filter.CategoryID,
		ZoneID:     filter.ZoneID,
		Limit:      dashboardMeasurementLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list latest measurements: %w", err)
	}
	recent, err := s.stores.Alerts.List(ctx, alertScope, store.AlertFilter{
		CategoryID: filter.CategoryID,
		ZoneID:     filter.ZoneID,
		Limit:      dashboardAlertLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent alerts: %w", err)
	}

	from, to := alerts.WeeklyWindow(time.Now().UTC())
	weekCounts, err := s.stores.Alerts.CountByPriority(ctx, alertScope, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count weekly alerts: %w", err)
	}

	dash := &Dashboard{
		DevicesByCategory:  byCategory,
		DevicesByZone:      byZone,
		LatestMeasurements: latest,
		RecentAlerts:       recent,
		WeekAlertCounts:    weekCounts,
		WeekFrom:           from,
		WeekTo:             to,
	}

	if cacheKey != "" {
		// Best effort; a cache write failure never fails the request.
		_ = s.cache.Set(ctx, cacheKey, dash, ttl)
	}
	return dash, nil
}

// dashboardCacheKey partitions the cache by organization so one tenant's
// dashboard can never be served to another.
func dashboardCacheKey(p authz.Principal) string {
	if p.IsSuperuser {
		return "dashboard:all"
	}
	if p.OrganizationID == nil {
		return "dashboard:none"
	}
	return fmt.Sprintf("dashboard:org:%d", *p.OrganizationID)
}

// InvalidateDashboard drops cached dashboards after a write that changes
// what they show.
func (s *Service) InvalidateDashboard(ctx context.Context, orgID *int64) {
	keys := []string{"dashboard:all"}
	if orgID != nil {
		keys = append(keys, fmt.Sprintf("dashboard:org:%d", *orgID))
	}
	_ = s.cache.Invalidate(ctx, keys...)
}

// recountGroups recomputes the grouped counts from an already-filtered
// device list, dropping groups that no longer match.
func recountGroups(byCategory, byZone []store.GroupCount, devices []model.Device) ([]store.GroupCount, []store.GroupCount) {
	catCounts := make(map[int64]int64)
	zoneCounts := make(map[int64]int64)
	for _, d := range devices {
		catCounts[d.CategoryID]++
		zoneCounts[d.ZoneID]++
	}

	var cats []store.GroupCount
	for _, gc := range byCategory {
		if n, ok := catCounts[gc.ID]; ok {
			gc.Count = n
			cats = append(cats, gc)
		}
	}
	var zones []store.GroupCount
	for _, gc := range byZone {
		if n, ok := zoneCounts[gc.ID]; ok {
			gc.Count = n
			zones = append(zones, gc)
		}
	}
	return cats, zones
}
