package fixedpoint

import (
	"math"
	"math/big"
	"sync"
)

// Price values are int64 scaled by PriceScale (six decimal places).
// Ratio values (serp-up routing, price-impact limits) use the same scale,
// so 1_000_000 == 100%.
const (
	PriceDecimals = 6
	PriceScale    = 1_000_000
)

// Int128 intermediates are pooled big.Ints for balance * price products
// that would overflow uint64.
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// CheckedAdd returns a+b and reports whether the addition stayed in range.
func CheckedAdd(a, b uint64) (uint64, bool) {
	if b > math.MaxUint64-a {
		return 0, false
	}
	return a + b, true
}

// CheckedSub returns a-b and reports whether the subtraction stayed non-negative.
func CheckedSub(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// CheckedMul returns a*b and reports whether the product stayed in range.
func CheckedMul(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/a != b {
		return 0, false
	}
	return p, true
}

// ApplyRatio computes amount * ratio / PriceScale with an int128 intermediate.
// The result is truncated. Reports false when the result exceeds uint64 range
// or the ratio is negative.
func ApplyRatio(amount uint64, ratio int64) (uint64, bool) {
	if ratio < 0 {
		return 0, false
	}
	return MulDiv(amount, ratio, PriceScale)
}

// MulDiv computes amount * mul / div with an int128 intermediate, truncating.
// div must be positive. Reports false on out-of-range results.
func MulDiv(amount uint64, mul, div int64) (uint64, bool) {
	if mul < 0 || div <= 0 {
		return 0, false
	}

	num := getInt128()
	num.SetUint64(amount)
	num.Mul(num, big.NewInt(mul))
	num.Quo(num, big.NewInt(div))

	ok := num.IsUint64()
	var out uint64
	if ok {
		out = num.Uint64()
	}
	putInt128(num)

	return out, ok
}

// RelativePrice returns numerator/denominator as a PriceScale-scaled ratio.
// Used to convert a deficit in one asset into the reserve-anchor asset.
func RelativePrice(numerator, denominator int64) (int64, bool) {
	if numerator < 0 || denominator <= 0 {
		return 0, false
	}

	num := getInt128()
	num.SetInt64(numerator)
	num.Mul(num, big.NewInt(PriceScale))
	num.Quo(num, big.NewInt(denominator))

	ok := num.IsInt64()
	var out int64
	if ok {
		out = num.Int64()
	}
	putInt128(num)

	return out, ok
}

// AbsDeviationRatio returns |market - peg| / peg as a PriceScale-scaled ratio.
// This is the per-step supply adjustment fraction: a coin trading 1% above
// peg adjusts issuance by 1%.
func AbsDeviationRatio(market, peg int64) (int64, bool) {
	if peg <= 0 {
		return 0, false
	}

	dev := market - peg
	if dev < 0 {
		dev = -dev
	}

	return RelativePrice(dev, peg)
}
