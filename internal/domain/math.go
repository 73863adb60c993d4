package domain

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FixedPointDecimals is the precision of on-chain USD prices.
const FixedPointDecimals = 18

// ToFixedPoint converts a USD amount to its 18-decimal integer string.
// Digits beyond 18 decimals are truncated.
func ToFixedPoint(usd float64) (string, error) {
	if math.IsNaN(usd) || math.IsInf(usd, 0) {
		return "", fmt.Errorf("%w: non-finite value %v", ErrComputation, usd)
	}
	if usd < 0 {
		return "", fmt.Errorf("%w: negative value %v", ErrComputation, usd)
	}
	return decimal.NewFromFloat(usd).Shift(FixedPointDecimals).Truncate(0).String(), nil
}

// FromFixedPoint converts an 18-decimal integer string back to a USD amount.
func FromFixedPoint(s string) (float64, error) {
	v, err := ParseFixedPoint(s)
	if err != nil {
		return 0, err
	}
	return decimal.NewFromBigInt(v, -FixedPointDecimals).InexactFloat64(), nil
}

// ParseFixedPoint parses a non-negative base-10 integer string.
func ParseFixedPoint(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidValue, s)
	}
	return v, nil
}

// FormatFixedPoint renders an 18-decimal integer as a human USD string.
func FormatFixedPoint(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -FixedPointDecimals).String()
}

// PercentChange returns (newV-oldV)/oldV*100. A zero old value counts as a
// 100% change when the new value is positive, and 0% otherwise.
func PercentChange(oldV, newV *big.Int) float64 {
	if oldV == nil || oldV.Sign() == 0 {
		if newV != nil && newV.Sign() > 0 {
			return 100
		}
		return 0
	}
	o := decimal.NewFromBigInt(oldV, 0)
	n := decimal.NewFromBigInt(newV, 0)
	return n.Sub(o).Div(o).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// ScaleDown converts a base-unit integer string to a decimal using the given decimals.
// Returns zero for invalid or empty input.
func ScaleDown(value string, decimals uint8) decimal.Decimal {
	d := SafeParse(value)
	return d.Shift(-int32(decimals))
}

// SafeParse parses a string into a decimal, returning zero for invalid or empty input.
func SafeParse(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
