package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/store"
)

func setupTestService(t *testing.T) (*Service, *store.Stores) {
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
			value REAL NOT NULL,
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

	stores := store.NewStores(store.NewSingle(db))
	return New(stores, nil, Options{}), stores
}

// testOrg is a seeded organization with one device and principals in every
// role.
type testOrg struct {
	Org      *model.Organization
	Category *model.Category
	Zone     *model.Zone
	Device   *model.Device

	Admin    authz.Principal
	Verifier authz.Principal
	Member   authz.Principal
}

func seedTestOrg(t *testing.T, stores *store.Stores, name string) testOrg {
	t.Helper()
	ctx := context.Background()

	org := &model.Organization{Name: name}
	if err := stores.Organizations.Create(ctx, org); err != nil {
		t.Fatalf("Failed to create organization: %v", err)
	}
	cat := &model.Category{Name: name + " sensors", OrganizationID: org.ID}
	if err := stores.Categories.Create(ctx, cat); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}
	zone := &model.Zone{Name: name + " floor", OrganizationID: org.ID}
	if err := stores.Zones.Create(ctx, zone); err != nil {
		t.Fatalf("Failed to create zone: %v", err)
	}
	device := &model.Device{
		Name:           name + "-device-1",
		Serial:         fmt.Sprintf("serial-%s", name),
		OrganizationID: org.ID,
		CategoryID:     cat.ID,
		ZoneID:         zone.ID,
	}
	if err := stores.Devices.Create(ctx, device); err != nil {
		t.Fatalf("Failed to create device: %v", err)
	}

	principal := func(role model.Role) authz.Principal {
		r := role
		return authz.Principal{UserID: 1, OrganizationID: &org.ID, Role: &r}
	}

	return testOrg{
		Org:      org,
		Category: cat,
		Zone:     zone,
		Device:   device,
		Admin:    principal(model.RoleOrgAdmin),
		Verifier: principal(model.RoleVerifier),
		Member:   principal(model.RoleMember),
	}
}

func superuserPrincipal() authz.Principal {
	return authz.Principal{UserID: 99, IsSuperuser: true}
}
