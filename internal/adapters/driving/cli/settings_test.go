package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
)

func TestFormatBps(t *testing.T) {
	tests := []struct {
		input    uint32
		expected string
	}{
		{1000, "10"},
		{10000, "100"},
		{250, "2.5"},
		{5, "0.05"},
		{1, "0.01"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatBps(tt.input))
	}
}

func TestSettingsShow_Defaults(t *testing.T) {
	setupCLITest(t, nil)

	out, err := execute(t, "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "Current Settings")
	assert.Contains(t, out, "Pair: AUSD/DOT")
	assert.Contains(t, out, "Swap fraction: 10%")
	assert.Contains(t, out, "Re-arm policy: always")
	assert.Contains(t, out, "Max delay: 100000 steps")
}

func TestSettingsShow_JSON(t *testing.T) {
	setupCLITest(t, map[string]any{"engine.token_a": "ACA"})

	out, err := execute(t, "settings", "show", "--output", "json")
	require.NoError(t, err)

	var view map[string]map[string]any
	require.NoError(t, sonnet.Unmarshal([]byte(strings.TrimSpace(out)), &view))
	assert.Equal(t, "ACA", view["engine"]["token_a"])
}

func TestSettingsShow_Invalid(t *testing.T) {
	setupCLITest(t, map[string]any{"engine.rearm_policy": "sometimes"})

	_, err := execute(t, "settings", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get settings")
}

func TestSettingsInit_WritesAllKeys(t *testing.T) {
	setupCLITest(t, nil)

	out, err := execute(t, "settings", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Settings saved.")

	store := settingsService
	got, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, store.GetDefaults().Engine.TokenB, got.Engine.TokenB)
}
