package clock

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/logger"
)

// Runner advances a clock at a sustained rate using a token bucket.
type Runner struct {
	clock   *Manual
	limiter *rate.Limiter
}

// NewRunner creates a runner for clock.
// Non-positive settings fall back to the defaults.
func NewRunner(clock *Manual, settings domain.RunnerSettings) *Runner {
	defaults := domain.DefaultRunnerSettings()
	if settings.StepsPerSecond <= 0 {
		settings.StepsPerSecond = defaults.StepsPerSecond
	}
	if settings.Burst <= 0 {
		settings.Burst = defaults.Burst
	}
	return &Runner{
		clock:   clock,
		limiter: rate.NewLimiter(rate.Limit(settings.StepsPerSecond), settings.Burst),
	}
}

// Run advances the clock until steps have elapsed or ctx is done.
// A zero steps value runs until cancellation. Listener errors are logged and
// do not stop the run. Cancellation is not reported as an error.
func (r *Runner) Run(ctx context.Context, steps uint64) (domain.Step, error) {
	step := r.clock.Current()
	for i := uint64(0); steps == 0 || i < steps; i++ {
		if !r.wait(ctx) {
			return step, nil
		}

		var err error
		step, err = r.clock.Advance(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return step, nil
			}
			logger.Error("clock: %v", err)
		}
	}
	return step, nil
}

// wait blocks until the limiter admits one step. It reports false when ctx
// ends first, including a deadline the limiter knows it cannot meet.
func (r *Runner) wait(ctx context.Context) bool {
	res := r.limiter.Reserve()
	if !res.OK() {
		return false
	}
	delay := res.Delay()
	if delay == 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		res.Cancel()
		return false
	}
}
