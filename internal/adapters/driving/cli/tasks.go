package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/storage/sqlite"
)

var flagTasksHistory int

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List pending tasks in the durable store",
	Long: `Lists pending tasks in firing order. With --history, also shows the
most recent firings of the configured engine.`,
	RunE: runTasks,
}

func init() {
	tasksCmd.Flags().IntVar(&flagTasksHistory, "history", 0, "Show the last N firings of the engine")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, _ []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	store, err := sqlite.NewStore(dir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	tasks, err := store.TaskStore().ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	if err := printTasks(cmd, tasks); err != nil {
		return err
	}

	if flagTasksHistory <= 0 {
		return nil
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	history, err := store.TaskStore().GetTaskHistory(ctx, settings.Engine.Address, flagTasksHistory)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	return printHistory(cmd, history)
}
