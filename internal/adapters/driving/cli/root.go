// Package cli provides the arbiter command line driver.
//
// Commands assemble the scheduler, the arbitrage engine and the simulated
// market adapters, then advance the clock either as fast as possible
// (simulate) or at a paced rate against durable storage (run).
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/config/file"
	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driving"
	"github.com/custodia-labs/arbiter/internal/core/services"
	"github.com/custodia-labs/arbiter/internal/logger"
)

var (
	// version is set at build time via SetVersion.
	version = "dev"

	flagVerbose   bool
	flagLogFormat string
	flagOutput    string
	flagConfigDir string
	flagDataDir   string

	// settingsService is opened from --config on first use unless already set.
	settingsService driving.SettingsService
)

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Step-driven task scheduler with a self-rearming arbitrage engine",
	Long: `arbiter drives a discrete clock, fires scheduled tasks when they fall due
and runs a price-triggered arbitrage engine that swaps through a
constant-product pool and re-arms itself every period.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", logger.FormatText, "Log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config", "", "Config directory (default ~/.arbiter)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data", "", "Data directory (default ~/.arbiter/data)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormat(flagLogFormat)
	logger.SetVerbose(flagVerbose)

	if flagOutput != "text" && flagOutput != "json" {
		return fmt.Errorf("unknown output format %q", flagOutput)
	}

	return nil
}

// settingsSvc returns the settings service, opening the config file on first use.
func settingsSvc() (driving.SettingsService, error) {
	if settingsService != nil {
		return settingsService, nil
	}
	store, err := file.NewConfigStore(flagConfigDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService = services.NewSettingsService(store)
	return settingsService, nil
}

// loadSettings reads the application settings.
func loadSettings() (*domain.AppSettings, error) {
	svc, err := settingsSvc()
	if err != nil {
		return nil, err
	}
	settings, err := svc.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// dataDir returns the directory holding the durable store.
func dataDir() (string, error) {
	if flagDataDir != "" {
		return flagDataDir, nil
	}
	if flagConfigDir != "" {
		return filepath.Join(flagConfigDir, "data"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".arbiter", "data"), nil
}
