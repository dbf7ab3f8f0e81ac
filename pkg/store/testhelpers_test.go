package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);

		CREATE TABLE categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			organization_id INTEGER NOT NULL REFERENCES organizations(id),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP,
			UNIQUE(organization_id, name)
		);

		CREATE TABLE zones (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			organization_id INTEGER NOT NULL REFERENCES organizations(id),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP,
			UNIQUE(organization_id, name)
		);

		CREATE TABLE devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			serial TEXT UNIQUE,
			organization_id INTEGER NOT NULL REFERENCES organizations(id),
			category_id INTEGER NOT NULL REFERENCES categories(id),
			zone_id INTEGER NOT NULL REFERENCES zones(id),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP,
			UNIQUE(organization_id, name)
		);

		CREATE TABLE measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id INTEGER NOT NULL REFERENCES devices(id),
			value REAL NOT NULL CHECK (value >= 0 AND value <= 1000),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);

		CREATE TABLE alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id INTEGER NOT NULL REFERENCES devices(id),
			message TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'medio',
			acknowledged INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);

		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_superuser INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_login_at TIMESTAMP
		);

		CREATE TABLE accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL UNIQUE REFERENCES users(id),
			organization_id INTEGER REFERENCES organizations(id),
			role TEXT NOT NULL DEFAULT 'member',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	return NewStores(NewSingle(setupTestDB(t)))
}

func orgScope(orgID int64) authz.Scope {
	return authz.Scope{Kind: authz.MatchOrg, OrgID: orgID, Resolution: authz.OrgDirect}
}

func viaDeviceScope(orgID int64) authz.Scope {
	return authz.Scope{Kind: authz.MatchOrg, OrgID: orgID, Resolution: authz.OrgViaDevice}
}

func mustCreateOrg(t *testing.T, s *Stores, name string) *model.Organization {
	t.Helper()
	org := &model.Organization{Name: name}
	if err := s.Organizations.Create(context.Background(), org); err != nil {
		t.Fatalf("Failed to create organization %s: %v", name, err)
	}
	return org
}

func mustCreateCategory(t *testing.T, s *Stores, orgID int64, name string) *model.Category {
	t.Helper()
	cat := &model.Category{Name: name, OrganizationID: orgID}
	if err := s.Categories.Create(context.Background(), cat); err != nil {
		t.Fatalf("Failed to create category %s: %v", name, err)
	}
	return cat
}

func mustCreateZone(t *testing.T, s *Stores, orgID int64, name string) *model.Zone {
	t.Helper()
	zone := &model.Zone{Name: name, OrganizationID: orgID}
	if err := s.Zones.Create(context.Background(), zone); err != nil {
		t.Fatalf("Failed to create zone %s: %v", name, err)
	}
	return zone
}

func mustCreateDevice(t *testing.T, s *Stores, orgID, catID, zoneID int64, name string) *model.Device {
	t.Helper()
	d := &model.Device{
		Name:           name,
		Serial:         fmt.Sprintf("serial-%s-%d", name, orgID),
		OrganizationID: orgID,
		CategoryID:     catID,
		ZoneID:         zoneID,
	}
	if err := s.Devices.Create(context.Background(), d); err != nil {
		t.Fatalf("Failed to create device %s: %v", name, err)
	}
	return d
}

// seedOrg creates an organization with one category, one zone, and one
// device, the minimum fixture most scoping tests need.
type orgFixture struct {
	Org      *model.Organization
	Category *model.Category
	Zone     *model.Zone
	Device   *model.Device
}

func seedOrg(t *testing.T, s *Stores, name string) orgFixture {
	t.Helper()
	org := mustCreateOrg(t, s, name)
	cat := mustCreateCategory(t, s, org.ID, name+" sensors")
	zone := mustCreateZone(t, s, org.ID, name+" floor")
	device := mustCreateDevice(t, s, org.ID, cat.ID, zone.ID, name+"-device-1")
	return orgFixture{Org: org, Category: cat, Zone: zone, Device: device}
}
