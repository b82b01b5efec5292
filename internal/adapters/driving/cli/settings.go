package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and initialise the engine, scheduler and runner settings stored in
config.toml.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current settings to the config file",
	Long: `Writes every setting, filling unset keys with their defaults, so the
config file can be edited by hand.`,
	RunE: runSettingsInit,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsInitCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	if flagOutput == "json" {
		return printJSON(cmd, settingsView(settings))
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Engine]")
	cmd.Printf("  Address: %s\n", settings.Engine.Address)
	cmd.Printf("  Owner: %s\n", settings.Engine.Owner)
	cmd.Printf("  Pair: %s/%s\n", settings.Engine.TokenA, settings.Engine.TokenB)
	cmd.Printf("  Swap fraction: %s%%\n", formatBps(settings.Engine.SwapFractionBps))
	cmd.Printf("  Minimum output: %s\n", domain.FormatFixed(settings.Engine.MinAmountOut))
	cmd.Printf("  Re-arm policy: %s\n", settings.Engine.RearmPolicy)
	cmd.Println()

	cmd.Println("[Scheduler]")
	cmd.Printf("  Max delay: %d steps\n", settings.Scheduler.MaxDelay)
	cmd.Printf("  History kept: %d per target\n", settings.Scheduler.HistoryKeep)
	cmd.Println()

	cmd.Println("[Runner]")
	cmd.Printf("  Steps per second: %g\n", settings.Runner.StepsPerSecond)
	cmd.Printf("  Burst: %d\n", settings.Runner.Burst)
	return nil
}

func runSettingsInit(cmd *cobra.Command, _ []string) error {
	svc, err := settingsSvc()
	if err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if err := svc.Save(settings); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return fmt.Errorf("invalid settings: %w", err)
		}
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Println("Settings saved.")
	return nil
}

// formatBps renders basis points as a percentage, e.g. 1000 as "10".
func formatBps(bps uint32) string {
	whole := bps / 100
	frac := bps % 100
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	if frac%10 == 0 {
		return fmt.Sprintf("%d.%d", whole, frac/10)
	}
	return fmt.Sprintf("%d.%02d", whole, frac)
}

func settingsView(s *domain.AppSettings) map[string]any {
	return map[string]any{
		"engine": map[string]any{
			"address":           s.Engine.Address.String(),
			"owner":             s.Engine.Owner.String(),
			"token_a":           s.Engine.TokenA.String(),
			"token_b":           s.Engine.TokenB.String(),
			"swap_fraction_bps": s.Engine.SwapFractionBps,
			"min_amount_out":    domain.FormatFixed(s.Engine.MinAmountOut),
			"rearm_policy":      s.Engine.RearmPolicy.String(),
		},
		"scheduler": map[string]any{
			"max_delay":    uint64(s.Scheduler.MaxDelay),
			"history_keep": s.Scheduler.HistoryKeep,
		},
		"runner": map[string]any{
			"steps_per_second": s.Runner.StepsPerSecond,
			"burst":            s.Runner.Burst,
		},
	}
}
