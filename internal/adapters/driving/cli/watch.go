package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/clock"
	"github.com/custodia-labs/arbiter/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/arbiter/internal/adapters/driving/tui"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
	"github.com/custodia-labs/arbiter/internal/logger"
)

var flagWatchRate float64

var watchCmd = &cobra.Command{
	Use:   "watch <scenario.yaml>",
	Short: "Run a scenario in a live terminal dashboard",
	Long: `Runs a scenario against in-memory state at runner.steps_per_second and
shows the engine balances, pending tasks and recent events as they change.

Controls:
  c - Clear the event log
  ? - Toggle help
  q - Quit`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Float64Var(&flagWatchRate, "rate", 0, "Steps per second (overrides runner.steps_per_second)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in dashboard: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	scenario, err := LoadScenario(args[0])
	if err != nil {
		return err
	}
	if flagWatchRate > 0 {
		settings.Runner.StepsPerSecond = flagWatchRate
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := tui.NewFeed()
	driver := &scenarioDriver{scenario: scenario}
	s, err := newStack(ctx, settings, stackOptions{
		tasks:   memory.NewTaskStore(),
		engines: memory.NewEngineStore(),
		feeBps:  scenario.Pool.FeeBps,
		sinks:   []driven.EventSink{feed},
		before:  driver,
	})
	if err != nil {
		return err
	}
	driver.stack = s
	// Subscribed after the scheduler so each snapshot shows the step's firings.
	s.clock.Subscribe(tui.NewSnapshotter(feed, s.engine, s.scheduler))

	// Log lines would tear the alternate screen.
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(os.Stderr)

	dashboard := tui.NewDashboard(filepath.Base(args[0]), feed)
	program := tea.NewProgram(dashboard, tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		runErr := startScenario(ctx, s, scenario)
		if runErr == nil {
			runner := clock.NewRunner(s.clock, settings.Runner)
			_, runErr = runner.Run(ctx, scenario.Steps)
		}
		feed.Done(ctx, runErr)
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return dashboard.Err()
}

// startScenario seeds the market, funds the engine and arms it.
func startScenario(ctx context.Context, s *stack, scenario *Scenario) error {
	if err := scenario.seed(s); err != nil {
		return err
	}
	return scenario.open(ctx, s, true)
}
