// Package cmd contains CLI command definitions
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethpandaops/tracker-probe/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Logger is the shared logger instance for all commands
	Logger *logrus.Logger

	appConfig    *config.AppConfig
	errNotLoaded = errors.New("configuration not loaded")

	envFile     string
	verbose     bool
	catalogPath string

	rootCmd = &cobra.Command{
		Use:   "tracker-probe",
		Short: "Live tracker verification for betting sites",
		Long: `tracker-probe opens the sports listings of betting sites in a browser, checks
that every sampled event shows a working live tracker widget, and turns the
results into an HTML report that can be mailed to the team.

Run without arguments to launch interactive mode, or use subcommands for direct operations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			appConfig = cfg

			InitLogger()

			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInteractive()
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Environment file to load (default .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Site catalog YAML (default from PROBE_CATALOG)")
}

// InitLogger builds the shared logger from LOG_LEVEL and the --verbose flag.
func InitLogger() {
	Logger = newLogger(verbose)

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" || verbose {
		return
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		Logger.WithField("level", logLevel).Warn("Invalid LOG_LEVEL, defaulting to info")
		return
	}

	Logger.SetLevel(level)
}

// loadConfig returns the configuration loaded at startup, applying --catalog.
func loadConfig() (*config.AppConfig, error) {
	if appConfig == nil {
		return nil, errNotLoaded
	}

	cfg := *appConfig
	if catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}

	return &cfg, nil
}
