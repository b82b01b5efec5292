package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "arbiter", rootCmd.Use)
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"simulate", "run", "watch", "tasks", "state", "settings", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_RejectsUnknownOutput(t *testing.T) {
	setupCLITest(t, nil)

	_, err := execute(t, "settings", "show", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestDataDir_FromConfigDir(t *testing.T) {
	setupCLITest(t, nil)
	flagDataDir = ""
	flagConfigDir = "/tmp/arbiter-cfg"
	defer func() { flagConfigDir = "" }()

	dir, err := dataDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/arbiter-cfg/data", dir)
}
