// Package main provides the episode-catalog CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rossigee/episode-catalog/internal/config"
	"github.com/rossigee/episode-catalog/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	// configFile is set by the --config flag.
	configFile string

	// cfg is loaded by PersistentPreRunE before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "episode-catalog",
	Short: "Catalog simulation episode metadata in SQLite",
	Long: `episode-catalog ingests episode metadata JSON files into a SQLite
catalog with one episode table per environment, renders a text report of
the catalog and serves it over a read-only HTTP API.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./episode-catalog.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies the log settings.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	loaded.SetupLogging()
	cfg = loaded

	logrus.WithFields(logrus.Fields{
		"command": cmd.Name(),
		"db_path": cfg.DBPath,
	}).Debug("Configuration loaded")
	return nil
}

// openStore opens the catalog; callers close it with defer.
func openStore() (*storage.Store, error) {
	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return store, nil
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close catalog")
	}
}
