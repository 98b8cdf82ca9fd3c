// seed provisions a development driver through the provisioning engine against
// the configured identity service and database. Safe to re-run: an existing
// driver with the same email is repaired in place.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"driver-provisioning/backend/internal/config"
	"driver-provisioning/backend/internal/db"
	driverrepo "driver-provisioning/backend/internal/driver/repository"
	"driver-provisioning/backend/internal/identity/gateway"
	"driver-provisioning/backend/internal/provisioning/service"
)

const (
	devDriverEmail    = "driver@example.com"
	devDriverPassword = "password123"
	devDriverName     = "Dev Driver"
	devLicenseNumber  = "DEV-0001"
)

func main() {
	email := flag.String("email", devDriverEmail, "driver email")
	password := flag.String("password", devDriverPassword, "driver password")
	fullName := flag.String("name", devDriverName, "driver full name")
	license := flag.String("license", devLicenseNumber, "driver license number")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 2})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	identities := gateway.NewClient(cfg.IdentityBaseURL(), cfg.IdentityServiceKey())
	identities.PageSize = cfg.IdentityPageSize
	identities.MaxPages = cfg.IdentityMaxPages
	identities.Logger = logger

	p := service.NewProvisioner(service.Deps{
		Identities: identities,
		Profiles:   driverrepo.NewPostgresRepository(database),
		Logger:     logger,
	})
	res, err := p.Provision(ctx, service.ProvisionInput{
		Email:         *email,
		Password:      *password,
		FullName:      *fullName,
		LicenseNumber: *license,
		Company:       "Dev Logistics",
		Vehicle:       "Van",
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("driver %s: auth_user_id=%s driver_id=%s repaired=%v\n", res.Email, res.IdentityID, res.ProfileID, res.Repaired)
}
