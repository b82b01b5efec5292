package services

import (
	"fmt"
	"math/big"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
	"github.com/custodia-labs/arbiter/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyEngineAddress     = "engine.address"
	keyEngineOwner       = "engine.owner"
	keyEngineTokenA      = "engine.token_a"
	keyEngineTokenB      = "engine.token_b"
	keyEngineSwapFrac    = "engine.swap_fraction_bps"
	keyEngineMinOut      = "engine.min_amount_out"
	keyEngineRearm       = "engine.rearm_policy"
	keySchedulerMaxDelay = "scheduler.max_delay"
	keySchedulerHistory  = "scheduler.history_keep"
	keyRunnerRate        = "runner.steps_per_second"
	keyRunnerBurst       = "runner.burst"
)

// SettingsService maps configuration keys to application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Get retrieves current application settings.
// Unset keys take their default; malformed values are reported.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	minOut := defaults.Engine.MinAmountOut
	if raw := s.configStore.GetString(keyEngineMinOut); raw != "" {
		parsed, err := domain.ParseFixed(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", keyEngineMinOut, err)
		}
		minOut = parsed
	}

	settings := &domain.AppSettings{
		Engine: domain.EngineSettings{
			Address:         domain.Address(s.getString(keyEngineAddress, string(defaults.Engine.Address))),
			Owner:           domain.Address(s.getString(keyEngineOwner, string(defaults.Engine.Owner))),
			TokenA:          domain.Token(s.getString(keyEngineTokenA, string(defaults.Engine.TokenA))),
			TokenB:          domain.Token(s.getString(keyEngineTokenB, string(defaults.Engine.TokenB))),
			SwapFractionBps: uint32(s.getInt(keyEngineSwapFrac, int(defaults.Engine.SwapFractionBps))),
			MinAmountOut:    minOut,
			RearmPolicy:     domain.RearmPolicy(s.getString(keyEngineRearm, defaults.Engine.RearmPolicy.String())),
		},
		Scheduler: domain.SchedulerSettings{
			MaxDelay:    domain.Step(s.getInt(keySchedulerMaxDelay, int(defaults.Scheduler.MaxDelay))),
			HistoryKeep: s.getInt(keySchedulerHistory, defaults.Scheduler.HistoryKeep),
		},
		Runner: domain.RunnerSettings{
			StepsPerSecond: s.getFloat(keyRunnerRate, defaults.Runner.StepsPerSecond),
			Burst:          s.getInt(keyRunnerBurst, defaults.Runner.Burst),
		},
	}

	if err := settings.Engine.Validate(); err != nil {
		return nil, err
	}
	if settings.Runner.StepsPerSecond <= 0 || settings.Runner.Burst <= 0 {
		return nil, fmt.Errorf("%w: runner rate and burst must be positive", domain.ErrInvalidInput)
	}
	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return domain.ErrInvalidInput
	}
	if err := settings.Engine.Validate(); err != nil {
		return err
	}

	minOut := settings.Engine.MinAmountOut
	if minOut == nil {
		minOut = new(big.Int)
	}

	values := []struct {
		key   string
		value any
	}{
		{keyEngineAddress, settings.Engine.Address.String()},
		{keyEngineOwner, settings.Engine.Owner.String()},
		{keyEngineTokenA, settings.Engine.TokenA.String()},
		{keyEngineTokenB, settings.Engine.TokenB.String()},
		{keyEngineSwapFrac, int64(settings.Engine.SwapFractionBps)},
		{keyEngineMinOut, domain.FormatFixed(minOut)},
		{keyEngineRearm, settings.Engine.RearmPolicy.String()},
		{keySchedulerMaxDelay, int64(settings.Scheduler.MaxDelay)},
		{keySchedulerHistory, int64(settings.Scheduler.HistoryKeep)},
		{keyRunnerRate, settings.Runner.StepsPerSecond},
		{keyRunnerBurst, int64(settings.Runner.Burst)},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

func (s *SettingsService) getString(key, def string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return def
}

func (s *SettingsService) getInt(key string, def int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, def float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	return s.configStore.GetFloat(key)
}
