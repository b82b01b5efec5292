package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/events"
	"github.com/custodia-labs/arbiter/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

var flagSimulateQuiet bool

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Run a scenario against in-memory state",
	Long: `Loads a YAML scenario, seeds the simulated pool and price feed, funds
and arms the engine, then advances the clock step by step as fast as possible.
Every scheduler and engine event is printed, followed by the final engine state.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().BoolVarP(&flagSimulateQuiet, "quiet", "q", false, "Only print the final state")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	scenario, err := LoadScenario(args[0])
	if err != nil {
		return err
	}

	var sinks []driven.EventSink
	if !flagSimulateQuiet {
		w, err := events.NewWriter(cmd.OutOrStdout(), flagOutput)
		if err != nil {
			return err
		}
		sinks = append(sinks, w)
	}

	ctx := context.Background()
	driver := &scenarioDriver{scenario: scenario}
	s, err := newStack(ctx, settings, stackOptions{
		tasks:   memory.NewTaskStore(),
		engines: memory.NewEngineStore(),
		feeBps:  scenario.Pool.FeeBps,
		sinks:   sinks,
		before:  driver,
	})
	if err != nil {
		return err
	}
	driver.stack = s

	if err := scenario.seed(s); err != nil {
		return err
	}
	if err := scenario.open(ctx, s, true); err != nil {
		return err
	}

	if _, err := s.clock.AdvanceBy(ctx, scenario.Steps); err != nil {
		return fmt.Errorf("simulation stopped: %w", err)
	}

	state, err := s.engine.State(ctx)
	if err != nil {
		return err
	}
	if err := printState(cmd, state); err != nil {
		return err
	}
	if driver.failures > 0 {
		return fmt.Errorf("%d scenario action(s) failed", driver.failures)
	}
	return nil
}
