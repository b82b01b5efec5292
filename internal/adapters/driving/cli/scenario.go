package cli

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/market"
	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driving"
	"github.com/custodia-labs/arbiter/internal/logger"
)

// Scenario describes a market and a timeline of price feeds and owner actions.
// Amounts and prices are decimal strings with up to 18 fractional digits.
type Scenario struct {
	Steps    uint64            `yaml:"steps"`
	Period   uint64            `yaml:"period"`
	Pool     PoolSpec          `yaml:"pool"`
	Deposits map[string]string `yaml:"deposits"`
	Prices   []PriceUpdate     `yaml:"prices"`
	Actions  []Action          `yaml:"actions"`
}

// PoolSpec seeds the simulated pool for the engine's pair.
type PoolSpec struct {
	FeeBps    uint32            `yaml:"fee_bps"`
	Liquidity map[string]string `yaml:"liquidity"`
}

// PriceUpdate feeds prices when Step is reached, before due tasks fire.
type PriceUpdate struct {
	Step uint64            `yaml:"step"`
	Set  map[string]string `yaml:"set"`
}

// Action is an owner operation performed when Step is reached.
type Action struct {
	Step   uint64 `yaml:"step"`
	Do     string `yaml:"do"`
	Period uint64 `yaml:"period,omitempty"`
	Token  string `yaml:"token,omitempty"`
	Amount string `yaml:"amount,omitempty"`
}

// Scenario actions.
const (
	actionArm      = "arm"
	actionDisarm   = "disarm"
	actionDeposit  = "deposit"
	actionWithdraw = "withdraw"
)

// LoadScenario reads and validates a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: scenario: %v", domain.ErrInvalidInput, err)
	}
	if len(sc.Pool.Liquidity) != 2 {
		return nil, fmt.Errorf("%w: scenario pool needs liquidity for exactly two tokens", domain.ErrInvalidInput)
	}
	for token, amount := range sc.Pool.Liquidity {
		if _, err := parsePositive(amount); err != nil {
			return nil, fmt.Errorf("pool liquidity %s: %w", token, err)
		}
	}
	for token, amount := range sc.Deposits {
		if _, err := parsePositive(amount); err != nil {
			return nil, fmt.Errorf("deposit %s: %w", token, err)
		}
	}
	for _, p := range sc.Prices {
		for token, price := range p.Set {
			if _, err := domain.ParseFixed(price); err != nil {
				return nil, fmt.Errorf("price %s at step %d: %w", token, p.Step, err)
			}
		}
	}
	for _, a := range sc.Actions {
		if err := a.validate(); err != nil {
			return nil, err
		}
	}
	return &sc, nil
}

func (a Action) validate() error {
	switch a.Do {
	case actionArm:
		if a.Period == 0 {
			return fmt.Errorf("%w: arm at step %d needs a period", domain.ErrInvalidInput, a.Step)
		}
	case actionDisarm:
	case actionDeposit, actionWithdraw:
		if a.Token == "" {
			return fmt.Errorf("%w: %s at step %d needs a token", domain.ErrInvalidInput, a.Do, a.Step)
		}
		if _, err := parsePositive(a.Amount); err != nil {
			return fmt.Errorf("%s at step %d: %w", a.Do, a.Step, err)
		}
	default:
		return fmt.Errorf("%w: unknown action %q at step %d", domain.ErrInvalidInput, a.Do, a.Step)
	}
	return nil
}

func parsePositive(s string) (*big.Int, error) {
	v, err := domain.ParseFixed(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount %q must be positive", domain.ErrInvalidInput, s)
	}
	return v, nil
}

// seed adds pool liquidity for the engine's pair.
func (sc *Scenario) seed(s *stack) error {
	pair := s.settings.Engine
	amountA, okA := sc.Pool.Liquidity[pair.TokenA.String()]
	amountB, okB := sc.Pool.Liquidity[pair.TokenB.String()]
	if !okA || !okB {
		return fmt.Errorf("%w: scenario pool must hold %s and %s", domain.ErrInvalidInput, pair.TokenA, pair.TokenB)
	}
	a, _ := parsePositive(amountA)
	b, _ := parsePositive(amountB)
	return s.pool.AddLiquidity(pair.TokenA, pair.TokenB, a, b)
}

// open funds and arms a fresh engine. Prices dated at or before the start
// step are fed first.
func (sc *Scenario) open(ctx context.Context, s *stack, fresh bool) error {
	start := s.clock.Current()
	for _, p := range sc.sortedPrices() {
		if domain.Step(p.Step) > start {
			break
		}
		if err := feed(s.oracle, p.Set); err != nil {
			return err
		}
	}

	if !fresh {
		logger.Info("resuming engine %s at step %d", s.settings.Engine.Address, start)
		return nil
	}

	owner := s.settings.Engine.Owner
	tokens := make([]string, 0, len(sc.Deposits))
	for token := range sc.Deposits {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	for _, token := range tokens {
		amount, _ := parsePositive(sc.Deposits[token])
		if err := s.engine.Deposit(ctx, owner, domain.Token(token), amount); err != nil {
			return fmt.Errorf("deposit %s: %w", token, err)
		}
	}
	if sc.Period > 0 {
		if err := s.engine.Arm(ctx, owner, domain.Step(sc.Period)); err != nil {
			return fmt.Errorf("arming engine: %w", err)
		}
	}
	return nil
}

func (sc *Scenario) sortedPrices() []PriceUpdate {
	out := make([]PriceUpdate, len(sc.Prices))
	copy(out, sc.Prices)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

func feed(oracle *market.Oracle, set map[string]string) error {
	for token, raw := range set {
		price, err := domain.ParseFixed(raw)
		if err != nil {
			return err
		}
		if err := oracle.Feed(domain.Token(token), price); err != nil {
			return err
		}
	}
	return nil
}

// scenarioDriver applies the scenario timeline as the clock advances.
// It runs before the scheduler, so prices fed at a step are seen by the
// engine trigger firing at that step.
type scenarioDriver struct {
	scenario *Scenario
	stack    *stack
	failures int
}

// Ensure scenarioDriver implements the interface.
var _ driving.StepListener = (*scenarioDriver)(nil)

// OnStepAdvance feeds prices and performs owner actions due at step.
// Action failures are logged and counted; the timeline continues.
func (d *scenarioDriver) OnStepAdvance(ctx context.Context, step domain.Step) error {
	if d.stack == nil {
		return nil
	}
	for _, p := range d.scenario.Prices {
		if domain.Step(p.Step) == step {
			if err := feed(d.stack.oracle, p.Set); err != nil {
				return fmt.Errorf("feeding prices: %w", err)
			}
		}
	}
	for _, a := range d.scenario.Actions {
		if domain.Step(a.Step) != step {
			continue
		}
		if err := d.perform(ctx, a); err != nil {
			d.failures++
			logger.Error("step %d: %s failed: %v", step, a.Do, err)
		}
	}
	return nil
}

func (d *scenarioDriver) perform(ctx context.Context, a Action) error {
	engine := d.stack.engine
	owner := d.stack.settings.Engine.Owner
	switch a.Do {
	case actionArm:
		return engine.Arm(ctx, owner, domain.Step(a.Period))
	case actionDisarm:
		return engine.Disarm(ctx, owner)
	case actionDeposit:
		amount, err := parsePositive(a.Amount)
		if err != nil {
			return err
		}
		return engine.Deposit(ctx, owner, domain.Token(a.Token), amount)
	case actionWithdraw:
		amount, err := parsePositive(a.Amount)
		if err != nil {
			return err
		}
		return engine.Withdraw(ctx, owner, domain.Token(a.Token), amount)
	}
	return fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, a.Do)
}
