package domain

import (
	"fmt"
	"math/big"
)

// ArbitrageState is the persistent state of one engine instance.
type ArbitrageState struct {
	// Address is the engine's own identity. Scheduled calls arrive
	// with this address as caller.
	Address Address

	// Owner may arm, disarm and withdraw.
	Owner Address

	// TokenA and TokenB are the two arbitraged assets.
	TokenA Token
	TokenB Token

	// Period is the re-arm interval in steps; zero when idle.
	Period Step

	// TaskID is the active scheduler task; zero when idle.
	TaskID TaskID

	// Balances holds the engine's swap capital per token.
	Balances map[Token]*big.Int

	// LastTriggerStep is the step of the most recent trigger.
	LastTriggerStep Step

	// Triggers counts trigger invocations.
	Triggers uint64
}

// NewArbitrageState returns an idle state with empty balances.
func NewArbitrageState(address, owner Address, tokenA, tokenB Token) *ArbitrageState {
	return &ArbitrageState{
		Address: address,
		Owner:   owner,
		TokenA:  tokenA,
		TokenB:  tokenB,
		Balances: map[Token]*big.Int{
			tokenA: new(big.Int),
			tokenB: new(big.Int),
		},
	}
}

// Armed reports whether a recurring task is registered.
func (s *ArbitrageState) Armed() bool {
	return !s.TaskID.IsZero()
}

// Consistent reports whether TaskID is set iff Period is positive.
func (s *ArbitrageState) Consistent() bool {
	return s.TaskID.IsZero() == (s.Period == 0)
}

// Holds reports whether token is one of the engine's pair.
func (s *ArbitrageState) Holds(token Token) bool {
	return token == s.TokenA || token == s.TokenB
}

// Balance returns a copy of the held balance of token.
func (s *ArbitrageState) Balance(token Token) *big.Int {
	if b, ok := s.Balances[token]; ok && b != nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Credit adds amount to the held balance of token.
func (s *ArbitrageState) Credit(token Token, amount *big.Int) {
	if s.Balances == nil {
		s.Balances = make(map[Token]*big.Int)
	}
	s.Balances[token] = new(big.Int).Add(s.Balance(token), amount)
}

// Debit subtracts amount from the held balance of token.
func (s *ArbitrageState) Debit(token Token, amount *big.Int) error {
	current := s.Balance(token)
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, need %s", ErrInsufficientBalance, token, current, amount)
	}
	s.Balances[token] = current.Sub(current, amount)
	return nil
}

// Clone returns a deep copy of the state.
func (s *ArbitrageState) Clone() *ArbitrageState {
	c := *s
	c.Balances = make(map[Token]*big.Int, len(s.Balances))
	for token, amount := range s.Balances {
		c.Balances[token] = new(big.Int).Set(amount)
	}
	return &c
}

// PoolQuote is the pair of reserves read at decision time.
type PoolQuote struct {
	ReserveIn  *big.Int
	ReserveOut *big.Int
}

// SwapResult holds the amounts a pool actually transferred.
type SwapResult struct {
	AmountIn  *big.Int
	AmountOut *big.Int
}

// Direction is the outcome of the trade decision rule.
type Direction int

// Trade directions.
const (
	// DirectionNone means prices are equal; no swap this round.
	DirectionNone Direction = iota

	// DirectionBuyA sells token B for token A.
	DirectionBuyA

	// DirectionBuyB sells token A for token B.
	DirectionBuyB
)

// String returns the string representation.
func (d Direction) String() string {
	switch d {
	case DirectionBuyA:
		return "buy_a"
	case DirectionBuyB:
		return "buy_b"
	default:
		return "none"
	}
}

// Decide applies the decision rule to a relative valuation price_a/price_b.
// A ratio below one means token A is undervalued.
func Decide(ratio *big.Int) Direction {
	switch ratio.Cmp(fixedOne) {
	case -1:
		return DirectionBuyA
	case 1:
		return DirectionBuyB
	default:
		return DirectionNone
	}
}

// RearmPolicy decides whether a failed rebalance still renews the recurrence.
type RearmPolicy string

// Available re-arm policies.
const (
	// RearmAlways re-arms after every trigger, even when the swap failed,
	// so a temporary price outage does not end the recurrence.
	RearmAlways RearmPolicy = "always"

	// RearmOnSuccess halts the recurrence when the swap failed.
	// The engine returns to idle and must be armed again manually.
	RearmOnSuccess RearmPolicy = "on_success"
)

// IsValid returns true if the policy is recognised.
func (p RearmPolicy) IsValid() bool {
	return p == RearmAlways || p == RearmOnSuccess
}

// String returns the string representation.
func (p RearmPolicy) String() string {
	return string(p)
}

// EngineSettings holds arbitrage engine configuration.
type EngineSettings struct {
	// Address is the engine's own identity.
	Address Address

	// Owner is the identity allowed to arm, disarm and withdraw.
	Owner Address

	// TokenA and TokenB are the arbitraged pair.
	TokenA Token
	TokenB Token

	// SwapFractionBps is the share of the sold token's balance risked per trigger.
	SwapFractionBps uint32

	// MinAmountOut rejects swaps quoting less output. Zero accepts any output.
	MinAmountOut *big.Int

	// RearmPolicy selects the behaviour after a failed rebalance.
	RearmPolicy RearmPolicy
}

// Validate checks that the settings describe a usable engine.
func (s EngineSettings) Validate() error {
	switch {
	case s.Address.IsZero():
		return fmt.Errorf("%w: engine address is required", ErrInvalidInput)
	case s.Owner.IsZero():
		return fmt.Errorf("%w: engine owner is required", ErrInvalidInput)
	case s.Owner == s.Address:
		return fmt.Errorf("%w: engine owner must differ from engine address", ErrInvalidInput)
	case s.TokenA == "" || s.TokenB == "":
		return fmt.Errorf("%w: both tokens are required", ErrInvalidInput)
	case s.TokenA == s.TokenB:
		return fmt.Errorf("%w: tokens must differ", ErrInvalidInput)
	case s.SwapFractionBps == 0 || s.SwapFractionBps > BpsDenominator:
		return fmt.Errorf("%w: swap fraction must be within 1..%d bps", ErrInvalidInput, BpsDenominator)
	case s.MinAmountOut != nil && s.MinAmountOut.Sign() < 0:
		return fmt.Errorf("%w: minimum amount out is negative", ErrInvalidInput)
	case !s.RearmPolicy.IsValid():
		return fmt.Errorf("%w: re-arm policy %q", ErrInvalidInput, s.RearmPolicy)
	}
	return nil
}

// DefaultSwapFractionBps risks 10% of the sold token's balance per trigger.
const DefaultSwapFractionBps = 1_000

// DefaultEngineSettings returns defaults for everything except identities and tokens.
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		Address:         "arbiter",
		Owner:           "owner",
		TokenA:          "AUSD",
		TokenB:          "DOT",
		SwapFractionBps: DefaultSwapFractionBps,
		MinAmountOut:    new(big.Int),
		RearmPolicy:     RearmAlways,
	}
}
