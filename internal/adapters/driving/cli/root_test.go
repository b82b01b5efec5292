package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/arbiter/internal/core/services"
	"github.com/custodia-labs/arbiter/internal/logger"
)

// setupCLITest injects in-memory settings and a temporary data directory,
// and resets package flags afterwards.
func setupCLITest(t *testing.T, config map[string]any) string {
	t.Helper()

	oldSettings := settingsService
	dir := t.TempDir()

	settingsService = services.NewSettingsService(memory.NewConfigStore(config))
	flagDataDir = dir
	flagOutput = "text"
	flagVerbose = false
	flagLogFormat = logger.FormatText
	flagSimulateQuiet = false
	flagTasksHistory = 0
	flagRunRate = 1000

	t.Cleanup(func() {
		settingsService = oldSettings
		flagDataDir = ""
		flagOutput = "text"
		flagSimulateQuiet = false
		flagTasksHistory = 0
		flagRunRate = 0
		flagRunSteps = 0
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		logger.SetVerbose(false)
		logger.SetOutput(os.Stderr)
	})
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// writeScenario writes content to a scenario file in a temp directory.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const basicScenario = `
steps: 25
period: 10
pool:
  liquidity:
    AUSD: "1000"
    DOT: "1000"
deposits:
  AUSD: "100"
  DOT: "100"
prices:
  - step: 0
    set:
      AUSD: "1000"
      DOT: "2000"
`
