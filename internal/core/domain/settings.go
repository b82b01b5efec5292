package domain

// RunnerSettings controls how fast the paced clock advances steps.
type RunnerSettings struct {
	// StepsPerSecond is the target step rate.
	StepsPerSecond float64

	// Burst is the number of steps that may be advanced back to back.
	Burst int
}

// AppSettings aggregates all configurable settings.
type AppSettings struct {
	Engine    EngineSettings
	Scheduler SchedulerSettings
	Runner    RunnerSettings
}

// DefaultRunnerSettings returns one step per second without bursting.
func DefaultRunnerSettings() RunnerSettings {
	return RunnerSettings{
		StepsPerSecond: 1,
		Burst:          1,
	}
}

// DefaultAppSettings returns the default settings for every component.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Engine:    DefaultEngineSettings(),
		Scheduler: DefaultSchedulerSettings(),
		Runner:    DefaultRunnerSettings(),
	}
}
