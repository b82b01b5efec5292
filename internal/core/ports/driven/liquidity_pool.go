package driven

import (
	"context"
	"math/big"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// LiquidityPool is a constant-product pool for token pairs.
// Any trading fee is applied by the pool itself.
type LiquidityPool interface {
	// Reserves returns the reserves of the pair oriented as (tokenIn, tokenOut).
	// Returns domain.ErrUnknownPool if the pair has no pool.
	Reserves(ctx context.Context, tokenIn, tokenOut domain.Token) (domain.PoolQuote, error)

	// Quote returns the output a swap of amountIn would produce. Read-only.
	Quote(ctx context.Context, tokenIn, tokenOut domain.Token, amountIn *big.Int) (*big.Int, error)

	// Swap exchanges amountIn of tokenIn for tokenOut on behalf of trader.
	// Fails with domain.ErrSlippageExceeded if the output is below minAmountOut.
	Swap(
		ctx context.Context,
		trader domain.Address,
		tokenIn, tokenOut domain.Token,
		amountIn, minAmountOut *big.Int,
	) (domain.SwapResult, error)
}
