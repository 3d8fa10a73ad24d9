// Command identityguardd is a demonstration host for the identityguard
// core: it wires the persistence, config, and scheduling adapters around
// DeviceFingerprint/RiskEngine/AuthorizationCore and exposes them via a
// cobra CLI. The HTTP/servlet front-end that would call into this core is
// out of scope (spec §1).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "identityguardd",
		Short: "identityguard demonstration daemon",
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres DSN (overrides DATABASE_URL)")

	cmd.AddCommand(newServeCommand(&configFile, &databaseURL))
	cmd.AddCommand(newMigrateCommand(&databaseURL))
	cmd.AddCommand(newSweepAsnCommand(&configFile, &databaseURL))

	return cmd
}

func resolveDatabaseURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("DATABASE_URL")
}
