package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/storage/sqlite"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the engine state in the durable store",
	RunE:  runState,
}

func init() {
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	dir, err := dataDir()
	if err != nil {
		return err
	}
	store, err := sqlite.NewStore(dir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	state, err := store.EngineStore().Get(context.Background(), settings.Engine.Address)
	if isNotFound(err) {
		return errors.New("engine has no stored state; start it with 'arbiter run'")
	}
	if err != nil {
		return fmt.Errorf("loading engine state: %w", err)
	}
	return printState(cmd, state)
}
