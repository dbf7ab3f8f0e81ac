package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the full schema history in order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP,
					UNIQUE(name)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create categories and zones tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS categories (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP,
					UNIQUE(organization_id, name)
				);

				CREATE INDEX idx_categories_organization_id ON categories(organization_id);

				CREATE TABLE IF NOT EXISTS zones (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP,
					UNIQUE(organization_id, name)
				);

				CREATE INDEX idx_zones_organization_id ON zones(organization_id);
			`,
		},
		{
			Version:     3,
			Description: "Create devices table",
			SQL: `
				CREATE TABLE IF NOT EXISTS devices (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					serial VARCHAR(64) NOT NULL,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
					zone_id BIGINT NOT NULL REFERENCES zones(id) ON DELETE RESTRICT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP,
					UNIQUE(organization_id, name),
					UNIQUE(serial)
				);

				CREATE INDEX idx_devices_organization_id ON devices(organization_id);
				CREATE INDEX idx_devices_category_id ON devices(category_id);
				CREATE INDEX idx_devices_zone_id ON devices(zone_id);
			`,
		},
		{
			Version:     4,
			Description: "Create measurements table",
			SQL: `
				CREATE TABLE IF NOT EXISTS measurements (
					id BIGSERIAL PRIMARY KEY,
					device_id BIGINT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
					value DOUBLE PRECISION NOT NULL CHECK (value >= 0 AND value <= 1000),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP
				);

				CREATE INDEX idx_measurements_device_id ON measurements(device_id);
				CREATE INDEX idx_measurements_created_at ON measurements(created_at DESC);
			`,
		},
		{
			Version:     5,
			Description: "Create alerts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS alerts (
					id BIGSERIAL PRIMARY KEY,
					device_id BIGINT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
					message TEXT NOT NULL,
					priority VARCHAR(10) NOT NULL DEFAULT 'medio',
					acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP
				);

				CREATE INDEX idx_alerts_device_id ON alerts(device_id);
				CREATE INDEX idx_alerts_created_at ON alerts(created_at DESC);
				CREATE INDEX idx_alerts_acknowledged ON alerts(acknowledged);
			`,
		},
		{
			Version:     6,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL,
					username VARCHAR(255) NOT NULL,
					password_hash VARCHAR(255) NOT NULL,
					is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					last_login_at TIMESTAMP,
					UNIQUE(email),
					UNIQUE(username)
				);
			`,
		},
		{
			Version:     7,
			Description: "Create accounts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS accounts (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE RESTRICT,
					role VARCHAR(20) NOT NULL DEFAULT 'member',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id)
				);

				CREATE INDEX idx_accounts_organization_id ON accounts(organization_id);
			`,
		},
		{
			Version:     8,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL,
					token_prefix VARCHAR(16) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP NOT NULL,
					revoked_at TIMESTAMP,
					UNIQUE(token_hash)
				);

				CREATE INDEX idx_sessions_user_id ON sessions(user_id);
				CREATE INDEX idx_sessions_expires_at ON sessions(expires_at);
			`,
		},
	}
}

// RunMigrations applies all pending migrations, each in its own
// transaction, recording applied versions in vigia_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vigia_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM vigia_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range Migrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vigia_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
