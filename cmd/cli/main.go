package main

import (
	"os"

	"github.com/nimasrn/credit-gateway/internal/config"
	"github.com/nimasrn/credit-gateway/pkg/logger"
	"github.com/spf13/cobra"
)

var envPath string

var rootCmd = &cobra.Command{
	Use:           "credit-gateway",
	Short:         "Operational tooling for the credit gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "Path to a .env file loaded before reading the environment")
}

// loadConfig loads the env file, falling back to ./.env when it exists.
func loadConfig() (*config.Config, error) {
	path := envPath
	if path == "" {
		if _, err := os.Stat(".env"); err == nil {
			path = ".env"
		}
	}
	if err := config.Load(path); err != nil {
		return nil, err
	}
	return config.Get(), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
