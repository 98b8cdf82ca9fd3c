// migrate applies the embedded drivers/audit_logs schema; use with go run ./cmd/migrate.
package main

import (
	"flag"
	"fmt"
	"os"

	"driver-provisioning/backend/internal/config"
	"driver-provisioning/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	res, err := migrate.Run(cfg.DatabaseURL, *direction)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	if res.Dirty {
		fmt.Fprintf(os.Stderr, "migrate: schema version %d is dirty; fix it and force the version\n", res.Version)
		os.Exit(1)
	}
	fmt.Printf("schema at version %d\n", res.Version)
}
