package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"identityguard/internal/adapters/orm"
	"identityguard/internal/asn"
	"identityguard/internal/config"
	"identityguard/internal/telemetry"
)

func newSweepAsnCommand(configFile, databaseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-asn",
		Short: "Delete ASN cache rows older than the configured stale threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			dsn := resolveDatabaseURL(*databaseURL)
			if dsn == "" {
				return fmt.Errorf("no database URL provided: set --database-url or DATABASE_URL")
			}

			db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}

			telemetrySvc, err := telemetry.NewTelemetryService(context.Background(), "identityguardd-sweep-asn")
			if err != nil {
				return fmt.Errorf("starting telemetry: %w", err)
			}
			defer telemetrySvc.Shutdown()

			store := orm.NewAsnEntryRepository(db)
			sweeper := asn.NewSweeper(store, cfg.Asn.StaleThreshold, telemetrySvc.Slogger)

			removed, err := sweeper.SweepOnce(context.Background())
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			cmd.Printf("removed %d stale asn_entry rows\n", removed)
			return nil
		},
	}
}
