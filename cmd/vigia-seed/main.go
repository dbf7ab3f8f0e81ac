package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vigia-iot/vigia/pkg/seed"
	"github.com/vigia-iot/vigia/pkg/store"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	dbURL := flag.String("db-url", getEnv("VIGIA_POSTGRES_URL", "postgres://localhost/vigia?sslmode=disable"), "PostgreSQL connection URL")
	devices := flag.Int("devices", 6, "Devices per organization")
	measurements := flag.Int("measurements", 48, "Measurements per device")
	alerts := flag.Int("alerts", 12, "Alerts per device")
	superuserEmail := flag.String("superuser-email", "root@vigia.local", "Superuser email")
	superuserPassword := flag.String("superuser-password", "", "Superuser password (required)")
	demoPassword := flag.String("demo-password", "demo-password", "Password for every demo user")
	migrate := flag.Bool("migrate", true, "Run migrations before seeding")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *superuserPassword == "" {
		log.Fatal("superuser-password is required")
	}

	db, err := store.NewConnectionManager(store.ConnectionConfig{
		PrimaryURL: *dbURL,
		MaxConns:   5,
		MinConns:   1,
		Timeout:    10 * time.Second,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()

	if *migrate {
		if err := store.RunMigrations(ctx, db.Writer()); err != nil {
			log.WithError(err).Fatal("failed to run migrations")
		}
		log.Info("migrations applied")
	}

	opts := seed.Options{
		DevicesPerOrg:      *devices,
		MeasurementHistory: *measurements,
		AlertHistory:       *alerts,
		SuperuserEmail:     *superuserEmail,
		SuperuserPassword:  *superuserPassword,
		DemoPassword:       *demoPassword,
	}

	seeder := seed.New(store.NewStores(db), log)
	if err := seeder.Run(ctx, opts); err != nil {
		log.WithError(err).Fatal("seeding failed")
	}
	log.Info("seeding complete")
}
