package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"identityguard/migrations"
)

func newMigrateCommand(databaseURL *string) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply identityguard's schema to the configured database",
		Long: `migrate runs the SQL migrations under migrations/ against the configured
Postgres database using golang-migrate. Pass --down to revert the single
most recently applied migration instead of applying pending ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := resolveDatabaseURL(*databaseURL)
			if dsn == "" {
				return fmt.Errorf("no database URL provided: set --database-url or DATABASE_URL")
			}

			gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			sqlDB, err := gormDB.DB()
			if err != nil {
				return fmt.Errorf("obtaining raw connection: %w", err)
			}

			if down {
				if err := migrations.RevertLast(sqlDB); err != nil {
					return fmt.Errorf("reverting migration: %w", err)
				}
				cmd.Println("last migration reverted")
				return nil
			}

			if err := migrations.ApplyMigrations(sqlDB); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			cmd.Println("migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "revert the last applied migration instead of applying pending ones")
	return cmd
}
