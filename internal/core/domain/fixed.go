package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FixedDecimals is the number of fractional digits used by price feeds
// and by relative valuations.
const FixedDecimals = 18

// BpsDenominator is the number of basis points in a whole.
const BpsDenominator = 10_000

var fixedOne = new(big.Int).Exp(big.NewInt(10), big.NewInt(FixedDecimals), nil)

// FixedOne returns 1.0 in fixed point.
func FixedOne() *big.Int {
	return new(big.Int).Set(fixedOne)
}

// FixedDiv returns a/b with FixedDecimals fractional digits, rounded down.
func FixedDiv(a, b *big.Int) (*big.Int, error) {
	if a == nil || b == nil || b.Sign() == 0 {
		return nil, fmt.Errorf("%w: fixed-point division by zero", ErrInvalidInput)
	}
	num := new(big.Int).Mul(a, fixedOne)
	return num.Quo(num, b), nil
}

// FixedMul returns a*b for two fixed-point values, rounded down.
func FixedMul(a, b *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, fixedOne)
}

// ApplyBps returns floor(amount * bps / 10000).
func ApplyBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return out.Quo(out, big.NewInt(BpsDenominator))
}

// ConstantProductOut returns the output of a constant-product swap without fee:
// floor(amountIn * reserveOut / (reserveIn + amountIn)).
// The result is non-decreasing in amountIn and always below reserveOut.
func ConstantProductOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount in", ErrInvalidInput)
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	num := new(big.Int).Mul(amountIn, reserveOut)
	den := new(big.Int).Add(reserveIn, amountIn)
	return num.Quo(num, den), nil
}

// ParseFixed converts a decimal string such as "1.25" into a fixed-point integer.
// Digits beyond FixedDecimals are truncated.
func ParseFixed(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrInvalidInput, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: amount %q is negative", ErrInvalidInput, s)
	}
	return d.Shift(FixedDecimals).BigInt(), nil
}

// FormatFixed renders a fixed-point integer as a decimal string.
func FormatFixed(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -FixedDecimals).String()
}
