package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAppSettings(t *testing.T) {
	settings := DefaultAppSettings()

	assert.Equal(t, DefaultEngineSettings().Address, settings.Engine.Address)
	assert.Equal(t, uint32(DefaultSwapFractionBps), settings.Engine.SwapFractionBps)
	assert.Equal(t, RearmAlways, settings.Engine.RearmPolicy)
	assert.Equal(t, DefaultSchedulerSettings(), settings.Scheduler)
	assert.Equal(t, DefaultRunnerSettings(), settings.Runner)
}

func TestDefaultRunnerSettings(t *testing.T) {
	runner := DefaultRunnerSettings()

	assert.InDelta(t, 1.0, runner.StepsPerSecond, 1e-9)
	assert.Equal(t, 1, runner.Burst)
}
