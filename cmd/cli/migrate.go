package main

import (
	"github.com/nimasrn/credit-gateway/pkg/pg"
	"github.com/spf13/cobra"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return pg.Migrate(cfg.PostgresWrite(), dir(cfg.MigrationsDir))
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return pg.MigrationStatus(cfg.PostgresWrite(), dir(cfg.MigrationsDir))
	},
}

func dir(fromConfig string) string {
	if migrationsDir != "" {
		return migrationsDir
	}
	return fromConfig
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "", "Migrations directory (default MIGRATIONS_DIR or ./migrations)")
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
