// Package seed populates a database with demo organizations, devices, and
// a week of measurement and alert history for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vigia-iot/vigia/pkg/auth"
	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/store"
)

// Options controls the shape of the demo data set.
type Options struct {
	DevicesPerOrg      int
	MeasurementHistory int
	AlertHistory       int
	SuperuserEmail     string
	SuperuserPassword  string
	DemoPassword       string
}

// DefaultOptions produces a small but representative data set.
func DefaultOptions() Options {
	return Options{
		DevicesPerOrg:      6,
		MeasurementHistory: 48,
		AlertHistory:       12,
		SuperuserEmail:     "root@vigia.local",
		SuperuserPassword:  "changeme-now",
		DemoPassword:       "demo-password",
	}
}

type orgPlan struct {
	name       string
	categories []string
	zones      []string
}

var demoOrgs = []orgPlan{
	{
		name:       "Acme Cold Chain",
		categories: []string{"Freezers", "Refrigerated Trucks", "Loading Docks"},
		zones:      []string{"Warehouse North", "Warehouse South", "Fleet"},
	},
	{
		name:       "Rivera Agro",
		categories: []string{"Soil Sensors", "Irrigation Pumps", "Weather Stations"},
		zones:      []string{"Field A", "Field B", "Greenhouse"},
	},
}

// Seeder writes demo data through the store layer so every row passes the
// same validation as production writes.
type Seeder struct {
	stores *store.Stores
	log    *logrus.Logger
	rng    *rand.Rand
}

func New(stores *store.Stores, log *logrus.Logger) *Seeder {
	return &Seeder{
		stores: stores,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run seeds everything. It is not idempotent; re-running against a seeded
// database fails on the unique organization names.
func (s *Seeder) Run(ctx context.Context, opts Options) error {
	if err := s.seedSuperuser(ctx, opts); err != nil {
		return err
	}
	for _, plan := range demoOrgs {
		if err := s.seedOrganization(ctx, plan, opts); err != nil {
			return fmt.Errorf("failed to seed %s: %w", plan.name, err)
		}
	}
	return nil
}

func (s *Seeder) seedSuperuser(ctx context.Context, opts Options) error {
	hash, err := auth.HashPassword(opts.SuperuserPassword)
	if err != nil {
		return fmt.Errorf("failed to hash superuser password: %w", err)
	}
	ident := &model.Identity{
		Email:        opts.SuperuserEmail,
		Username:     "root",
		PasswordHash: hash,
		IsSuperuser:  true,
		IsActive:     true,
	}
	if err := s.stores.Identities.Create(ctx, ident); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.log.WithField("email", opts.SuperuserEmail).Info("superuser already exists, skipping")
			return nil
		}
		return fmt.Errorf("failed to create superuser: %w", err)
	}
	s.log.WithField("email", opts.SuperuserEmail).Info("superuser created")
	return nil
}

func (s *Seeder) seedOrganization(ctx context.Context, plan orgPlan, opts Options) error {
	org := &model.Organization{Name: plan.name}
	if err := s.stores.Organizations.Create(ctx, org); err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	s.log.WithFields(logrus.Fields{"org": plan.name, "id": org.ID}).Info("organization created")

	categories := make([]*model.Category, 0, len(plan.categories))
	for _, name := range plan.categories {
		cat := &model.Category{Name: name, OrganizationID: org.ID}
		if err := s.stores.Categories.Create(ctx, cat); err != nil {
			return fmt.Errorf("failed to create category %s: %w", name, err)
		}
		categories = append(categories, cat)
	}

	zones := make([]*model.Zone, 0, len(plan.zones))
	for _, name := range plan.zones {
		zone := &model.Zone{Name: name, OrganizationID: org.ID}
		if err := s.stores.Zones.Create(ctx, zone); err != nil {
			return fmt.Errorf("failed to create zone %s: %w", name, err)
		}
		zones = append(zones, zone)
	}

	orgScope := authz.Scope{
		Kind:       authz.MatchOrg,
		OrgID:      org.ID,
		Resolution: authz.OrgDirect,
	}

	for i := 0; i < opts.DevicesPerOrg; i++ {
		device := &model.Device{
			Name:           fmt.Sprintf("sensor-%02d", i+1),
			Serial:         uuid.NewString(),
			CategoryID:     categories[i%len(categories)].ID,
			ZoneID:         zones[i%len(zones)].ID,
			OrganizationID: org.ID,
		}
		if err := s.stores.Devices.Create(ctx, device); err != nil {
			return fmt.Errorf("failed to create device %s: %w", device.Name, err)
		}
		if err := s.seedHistory(ctx, orgScope, device, opts); err != nil {
			return err
		}
	}

	if err := s.seedUsers(ctx, org, opts); err != nil {
		return err
	}

	s.log.WithField("org", plan.name).Info("organization seeded")
	return nil
}

func (s *Seeder) seedHistory(ctx context.Context, orgScope authz.Scope, device *model.Device, opts Options) error {
	for i := 0; i < opts.MeasurementHistory; i++ {
		m := &model.Measurement{
			DeviceID: device.ID,
			Value:    float64(s.rng.Intn(1001)),
		}
		if err := s.stores.Measurements.Create(ctx, orgScope, m); err != nil {
			return fmt.Errorf("failed to create measurement: %w", err)
		}
	}

	priorities := model.Priorities()
	for i := 0; i < opts.AlertHistory; i++ {
		a := &model.Alert{
			DeviceID: device.ID,
			Message:  fmt.Sprintf("reading out of range on %s", device.Name),
			Priority: priorities[s.rng.Intn(len(priorities))],
		}
		if err := s.stores.Alerts.Create(ctx, orgScope, a); err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}
	}
	return nil
}

func (s *Seeder) seedUsers(ctx context.Context, org *model.Organization, opts Options) error {
	hash, err := auth.HashPassword(opts.DemoPassword)
	if err != nil {
		return fmt.Errorf("failed to hash demo password: %w", err)
	}

	users := []struct {
		prefix string
		role   model.Role
	}{
		{"admin", model.RoleOrgAdmin},
		{"verifier", model.RoleVerifier},
		{"member", model.RoleMember},
	}

	slug := slugify(org.Name)
	for _, u := range users {
		ident, account, err := s.stores.Register(ctx, store.Registration{
			Email:            fmt.Sprintf("%s@%s.vigia.local", u.prefix, slug),
			Username:         fmt.Sprintf("%s-%s", u.prefix, slug),
			PasswordHash:     hash,
			OrganizationName: org.Name,
		})
		if err != nil {
			return fmt.Errorf("failed to register %s user: %w", u.prefix, err)
		}
		if u.role != model.RoleMember {
			if err := s.stores.Accounts.Attach(ctx, account.ID, org.ID, u.role); err != nil {
				return fmt.Errorf("failed to promote %s user: %w", u.prefix, err)
			}
		}
		s.log.WithFields(logrus.Fields{
			"email": ident.Email,
			"role":  u.role,
		}).Info("demo user created")
	}
	return nil
}

func slugify(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '-')
		}
	}
	return string(out)
}
