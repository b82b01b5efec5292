package market

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

func TestOracle_PriceUnset(t *testing.T) {
	o := NewOracle()

	price, err := o.Price(context.Background(), "DOT")
	require.NoError(t, err)
	assert.Equal(t, 0, price.Sign())
}

func TestOracle_FeedAndPrice(t *testing.T) {
	o := NewOracle()
	require.NoError(t, o.Feed("DOT", big.NewInt(2000)))

	price, err := o.Price(context.Background(), "DOT")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), price.Int64())

	// Callers cannot mutate the stored price
	price.SetInt64(1)
	again, err := o.Price(context.Background(), "DOT")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), again.Int64())
}

func TestOracle_FeedZeroClears(t *testing.T) {
	o := NewOracle()
	require.NoError(t, o.Feed("DOT", big.NewInt(5)))
	require.NoError(t, o.Feed("DOT", big.NewInt(0)))

	price, err := o.Price(context.Background(), "DOT")
	require.NoError(t, err)
	assert.Equal(t, 0, price.Sign())
}

func TestOracle_FeedInvalid(t *testing.T) {
	o := NewOracle()
	assert.ErrorIs(t, o.Feed("", big.NewInt(1)), domain.ErrInvalidInput)
	assert.ErrorIs(t, o.Feed("DOT", nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, o.Feed("DOT", big.NewInt(-1)), domain.ErrInvalidInput)
}
