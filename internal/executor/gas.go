package executor

import (
	"math/big"
	"time"
)

// GasPolicy decides the replacement price after a confirmation timeout.
type GasPolicy struct {
	// BumpNum/BumpDen is the multiplier applied per escalation.
	BumpNum        int64
	BumpDen        int64
	MaxEscalations int
	// FastPriceMaxAge bounds how stale an external fast price may be.
	FastPriceMaxAge time.Duration
}

// DefaultGasPolicy bumps by 1.2x at most three times and trusts a fast price
// for ten minutes.
func DefaultGasPolicy() GasPolicy {
	return GasPolicy{
		BumpNum:         12,
		BumpDen:         10,
		MaxEscalations:  3,
		FastPriceMaxAge: 10 * time.Minute,
	}
}

// Next returns the price for the next broadcast and whether it counts as an
// escalation. prev is bumped while escalations remain, then reused. A fresh
// fast price replaces that only when it is higher, and is not an escalation.
// The result never drops below suggested.
func (p GasPolicy) Next(prev, suggested, fast *big.Int, fastAt, now time.Time, escalations int) (*big.Int, bool) {
	var (
		price     *big.Int
		escalated bool
	)
	switch {
	case prev != nil && escalations < p.MaxEscalations:
		price = bump(prev, p.BumpNum, p.BumpDen)
		escalated = true
	case prev != nil:
		price = new(big.Int).Set(prev)
	default:
		price = new(big.Int)
	}

	fresh := fast != nil && fast.Sign() > 0 && !fastAt.IsZero() && now.Sub(fastAt) <= p.FastPriceMaxAge
	if fresh && fast.Cmp(price) > 0 {
		price = new(big.Int).Set(fast)
		escalated = false
	}

	if suggested != nil && price.Cmp(suggested) < 0 {
		price = new(big.Int).Set(suggested)
	}
	return price, escalated
}

// bump returns ceil(v*num/den).
func bump(v *big.Int, num, den int64) *big.Int {
	if den <= 0 {
		return new(big.Int).Set(v)
	}
	out := new(big.Int).Mul(v, big.NewInt(num))
	out.Add(out, big.NewInt(den-1))
	return out.Quo(out, big.NewInt(den))
}
