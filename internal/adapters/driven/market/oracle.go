package market

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

// Ensure Oracle implements the interface.
var _ driven.PriceFeed = (*Oracle)(nil)

// Oracle is an in-memory price feed.
type Oracle struct {
	mu     sync.RWMutex
	prices map[domain.Token]*big.Int
}

// NewOracle creates an oracle with no prices.
func NewOracle() *Oracle {
	return &Oracle{prices: make(map[domain.Token]*big.Int)}
}

// Feed sets the price of token. A zero price clears it.
func (o *Oracle) Feed(token domain.Token, price *big.Int) error {
	if token == "" || price == nil || price.Sign() < 0 {
		return fmt.Errorf("%w: price for %q", domain.ErrInvalidInput, token)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if price.Sign() == 0 {
		delete(o.prices, token)
		return nil
	}
	o.prices[token] = new(big.Int).Set(price)
	return nil
}

// Price returns the latest price for token, or zero when none was fed.
func (o *Oracle) Price(_ context.Context, token domain.Token) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if p, ok := o.prices[token]; ok {
		return new(big.Int).Set(p), nil
	}
	return new(big.Int), nil
}
