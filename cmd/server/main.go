// Package main is the cinememe entrypoint. It wires the serve, migrate and
// crop subcommands.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/cinememe/internal/core"
)

func getConfigPath() string {
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cwd, "config.yaml")
}

// loadConfig reads the file named by --config, CONFIG_PATH or ./config.yaml.
// A missing default file falls back to the built-in defaults.
func loadConfig(cmd *cobra.Command) (*core.ServiceConfig, error) {
	configPath, _ := cmd.Flags().GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = getConfigPath()
		explicit = os.Getenv("CONFIG_PATH") != ""
	}
	if _, err := os.Stat(configPath); err != nil && !explicit && os.IsNotExist(err) {
		slog.Info("no config file, using defaults", "path", configPath)
		return core.DefaultConfig(), nil
	}
	return core.LoadConfig(configPath)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "cinememe",
		Short:         "Create, crop and caption movie memes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config File Path (defaults to CONFIG_PATH or ./config.yaml)")

	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		cropCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("cinememe failed", "error", err)
		os.Exit(1)
	}
}
