package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/clock"
	"github.com/custodia-labs/arbiter/internal/adapters/driven/events"
	"github.com/custodia-labs/arbiter/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
	"github.com/custodia-labs/arbiter/internal/logger"
	"github.com/custodia-labs/arbiter/internal/metrics"
)

var (
	flagRunSteps       uint64
	flagRunMetricsAddr string
	flagRunRate        float64
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Drive the clock at a steady rate against durable state",
	Long: `Runs a scenario against the SQLite store in the data directory, advancing
the clock at runner.steps_per_second. Pending tasks and engine state survive
restarts: a later run resumes from the last processed step and does not
fund or arm the engine again.

Use --steps 0 to run until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Uint64Var(&flagRunSteps, "steps", 0, "Steps to run (default from scenario, 0 runs until interrupted)")
	runCmd.Flags().StringVar(&flagRunMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	runCmd.Flags().Float64Var(&flagRunRate, "rate", 0, "Steps per second (overrides runner.steps_per_second)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	scenario, err := LoadScenario(args[0])
	if err != nil {
		return err
	}
	if flagRunRate > 0 {
		settings.Runner.StepsPerSecond = flagRunRate
	}
	steps := scenario.Steps
	if cmd.Flags().Changed("steps") {
		steps = flagRunSteps
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := dataDir()
	if err != nil {
		return err
	}
	store, err := sqlite.NewStore(dir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()
	logger.Debug("using store %s", store.Path())

	start, err := resumeStep(ctx, store.TaskStore(), store.EngineStore(), settings.Engine.Address)
	if err != nil {
		return err
	}
	_, stateErr := store.EngineStore().Get(ctx, settings.Engine.Address)
	fresh := isNotFound(stateErr)

	w, err := events.NewWriter(cmd.OutOrStdout(), flagOutput)
	if err != nil {
		return err
	}
	sinks := []driven.EventSink{w}

	if flagRunMetricsAddr != "" {
		recorder := metrics.NewRecorder()
		sinks = append(sinks, recorder)
		shutdown := serveMetrics(flagRunMetricsAddr, recorder.Handler())
		defer shutdown()
	}

	driver := &scenarioDriver{scenario: scenario}
	s, err := newStack(ctx, settings, stackOptions{
		tasks:   store.TaskStore(),
		engines: store.EngineStore(),
		start:   start,
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
	if err := scenario.open(ctx, s, fresh); err != nil {
		return err
	}

	runner := clock.NewRunner(s.clock, settings.Runner)
	last, err := runner.Run(ctx, steps)
	if err != nil {
		return fmt.Errorf("run stopped: %w", err)
	}
	logger.Info("stopped at step %d", last)

	state, err := s.engine.State(context.Background())
	if err != nil {
		return err
	}
	return printState(cmd, state)
}

// serveMetrics serves handler on addr until the returned function is called.
func serveMetrics(addr string, handler http.Handler) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listening on %s/metrics", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
