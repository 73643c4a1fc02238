package domain

import (
	"strings"

	"cosmossdk.io/math"
)

// Decimal precisions used on the ledger.
const (
	AmountDecimals = 18
	RatioDecimals  = 27
)

var (
	// Scale is the fixed-point one for 27-decimal ratios.
	Scale = math.NewIntWithDecimal(1, RatioDecimals)
	// OneUnit is one unit of account at 18 decimals.
	OneUnit = math.NewIntWithDecimal(1, AmountDecimals)
	// Dust is the order size below which an order is treated as negligible.
	Dust = OneUnit
)

// ZeroIfNil replaces an uninitialised Int with zero.
func ZeroIfNil(v math.Int) math.Int {
	if v.IsNil() {
		return math.ZeroInt()
	}
	return v
}

// ClampSub returns max(0, a-b).
func ClampSub(a, b math.Int) math.Int {
	if a.LTE(b) {
		return math.ZeroInt()
	}
	return a.Sub(b)
}

// MinInt returns the smaller of a and b.
func MinInt(a, b math.Int) math.Int {
	if a.LT(b) {
		return a
	}
	return b
}

// MulDiv computes a*b/d, truncating, with overflow and zero-divisor checks.
func MulDiv(a, b, d math.Int) (math.Int, error) {
	if d.IsZero() {
		return math.Int{}, ErrDivisionByZero
	}
	prod, err := a.SafeMul(b)
	if err != nil {
		return math.Int{}, ErrOverflow
	}
	return prod.Quo(d), nil
}

// FormatAmount renders a fixed-point integer with the given number of
// decimals, trimming trailing zeros. Precision beyond 18 decimals is dropped.
func FormatAmount(v math.Int, decimals int64) string {
	v = ZeroIfNil(v)
	if decimals > math.LegacyPrecision {
		v = v.Quo(math.NewIntWithDecimal(1, int(decimals-math.LegacyPrecision)))
		decimals = math.LegacyPrecision
	}
	s := math.LegacyNewDecFromIntWithPrec(v, decimals).String()
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatRatio renders a 27-decimal ratio as a percentage with two decimals.
func FormatRatio(v math.Int) string {
	v = ZeroIfNil(v)
	pct := math.LegacyNewDecFromIntWithPrec(v.Quo(math.NewIntWithDecimal(1, RatioDecimals-math.LegacyPrecision)), math.LegacyPrecision).
		MulInt64(100).String()
	return pct[:strings.Index(pct, ".")+3] + "%"
}

// ParseRatio reads a decimal string ("0.9") into a 27-decimal ratio.
func ParseRatio(s string) (math.Int, error) {
	d, err := math.LegacyNewDecFromStr(strings.TrimSpace(s))
	if err != nil {
		return math.Int{}, err
	}
	if d.IsNegative() {
		return math.Int{}, ErrMalformedState
	}
	// LegacyDec carries 18 decimals; scale the raw value up to 27.
	return math.NewIntFromBigInt(d.BigInt()).Mul(math.NewIntWithDecimal(1, RatioDecimals-math.LegacyPrecision)), nil
}
