package market

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

// Ensure Pool implements the interface.
var _ driven.LiquidityPool = (*Pool)(nil)

// pairKey orders a token pair so both directions share one pool.
type pairKey struct {
	a, b domain.Token
}

func keyFor(x, y domain.Token) pairKey {
	if x < y {
		return pairKey{a: x, b: y}
	}
	return pairKey{a: y, b: x}
}

// Pool is an in-memory set of constant-product pools.
// FeeBps is taken from the input before pricing; zero means no fee.
type Pool struct {
	mu       sync.Mutex
	feeBps   uint32
	reserves map[pairKey]map[domain.Token]*big.Int
}

// NewPool creates an empty pool set charging feeBps on every swap.
func NewPool(feeBps uint32) (*Pool, error) {
	if feeBps >= domain.BpsDenominator {
		return nil, fmt.Errorf("%w: fee %d bps", domain.ErrInvalidInput, feeBps)
	}
	return &Pool{
		feeBps:   feeBps,
		reserves: make(map[pairKey]map[domain.Token]*big.Int),
	}, nil
}

// AddLiquidity deposits amounts of both tokens, creating the pool if needed.
func (p *Pool) AddLiquidity(tokenA, tokenB domain.Token, amountA, amountB *big.Int) error {
	if tokenA == "" || tokenB == "" || tokenA == tokenB {
		return fmt.Errorf("%w: pair %q/%q", domain.ErrInvalidInput, tokenA, tokenB)
	}
	if amountA == nil || amountB == nil || amountA.Sign() <= 0 || amountB.Sign() <= 0 {
		return fmt.Errorf("%w: liquidity must be positive", domain.ErrInvalidInput)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := keyFor(tokenA, tokenB)
	r, ok := p.reserves[key]
	if !ok {
		r = map[domain.Token]*big.Int{tokenA: new(big.Int), tokenB: new(big.Int)}
		p.reserves[key] = r
	}
	r[tokenA].Add(r[tokenA], amountA)
	r[tokenB].Add(r[tokenB], amountB)
	return nil
}

// Reserves returns the reserves oriented as (tokenIn, tokenOut).
func (p *Pool) Reserves(_ context.Context, tokenIn, tokenOut domain.Token) (domain.PoolQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.pool(tokenIn, tokenOut)
	if err != nil {
		return domain.PoolQuote{}, err
	}
	return domain.PoolQuote{
		ReserveIn:  new(big.Int).Set(r[tokenIn]),
		ReserveOut: new(big.Int).Set(r[tokenOut]),
	}, nil
}

// Quote returns the output of swapping amountIn without changing reserves.
func (p *Pool) Quote(_ context.Context, tokenIn, tokenOut domain.Token, amountIn *big.Int) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.pool(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return p.out(r, tokenIn, tokenOut, amountIn)
}

// Swap settles an exact-supply swap against the pool.
func (p *Pool) Swap(
	_ context.Context,
	trader domain.Address,
	tokenIn, tokenOut domain.Token,
	amountIn, minAmountOut *big.Int,
) (domain.SwapResult, error) {
	if trader.IsZero() {
		return domain.SwapResult{}, fmt.Errorf("%w: empty trader", domain.ErrInvalidInput)
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return domain.SwapResult{}, fmt.Errorf("%w: swap amount must be positive", domain.ErrInvalidInput)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.pool(tokenIn, tokenOut)
	if err != nil {
		return domain.SwapResult{}, err
	}
	out, err := p.out(r, tokenIn, tokenOut, amountIn)
	if err != nil {
		return domain.SwapResult{}, err
	}
	if out.Sign() == 0 {
		return domain.SwapResult{}, fmt.Errorf("%w: output rounds to zero", domain.ErrInsufficientLiquidity)
	}
	if minAmountOut != nil && out.Cmp(minAmountOut) < 0 {
		return domain.SwapResult{}, fmt.Errorf("%w: got %s, want at least %s",
			domain.ErrSlippageExceeded, out, minAmountOut)
	}

	r[tokenIn].Add(r[tokenIn], amountIn)
	r[tokenOut].Sub(r[tokenOut], out)
	return domain.SwapResult{
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: out,
	}, nil
}

// pool returns the reserves for a pair. Caller must hold p.mu.
func (p *Pool) pool(tokenIn, tokenOut domain.Token) (map[domain.Token]*big.Int, error) {
	if tokenIn == tokenOut {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrUnknownPool, tokenIn, tokenOut)
	}
	r, ok := p.reserves[keyFor(tokenIn, tokenOut)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrUnknownPool, tokenIn, tokenOut)
	}
	return r, nil
}

// out prices amountIn after the fee. Caller must hold p.mu.
func (p *Pool) out(r map[domain.Token]*big.Int, tokenIn, tokenOut domain.Token, amountIn *big.Int) (*big.Int, error) {
	effective := amountIn
	if p.feeBps > 0 && amountIn != nil {
		effective = domain.ApplyBps(amountIn, domain.BpsDenominator-p.feeBps)
	}
	return domain.ConstantProductOut(effective, r[tokenIn], r[tokenOut])
}
