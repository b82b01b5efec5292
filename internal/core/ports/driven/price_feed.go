package driven

import (
	"context"
	"math/big"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// PriceFeed returns fixed-point prices with domain.FixedDecimals fractional digits.
type PriceFeed interface {
	// Price returns the latest price for token.
	// Returns zero, not an error, when no price has been fed.
	Price(ctx context.Context, token domain.Token) (*big.Int, error)
}
