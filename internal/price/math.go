package price

import (
	"fmt"
	"math"
	"math/big"
)

// MaxSanePrice is the ceiling above which a pool price (or its inverse) is rejected.
const MaxSanePrice = 1e15

var twoPow192 = new(big.Int).Lsh(big.NewInt(1), 192)

// PriceFromSqrtX96 converts a Uniswap V3 sqrtPriceX96 into the human-scale price of
// token0 denominated in token1, plus its inverse. ok is false when either value is
// non-finite, non-positive or above MaxSanePrice.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (price, inverse float64, ok bool) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, 0, false
	}

	// price = sqrt^2 * 10^dec0 / (2^192 * 10^dec1)
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	num.Mul(num, pow10(decimals0))
	den := new(big.Int).Mul(twoPow192, pow10(decimals1))

	price, _ = new(big.Rat).SetFrac(num, den).Float64()
	if !sane(price) {
		return 0, 0, false
	}
	inverse = 1 / price
	if !sane(inverse) {
		return 0, 0, false
	}
	return price, inverse, true
}

func sane(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 && v <= MaxSanePrice
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func toBigInt(v interface{}) (*big.Int, error) {
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return nil, fmt.Errorf("expected *big.Int, got %T", v)
	}
	return b, nil
}
