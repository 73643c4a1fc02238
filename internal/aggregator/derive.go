package aggregator

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// DeriveCapacity computes how much new investment the pool can absorb once
// its pending orders are applied. It is pure: the same state always yields
// the same capacity. Every intermediate that could go negative is clamped to
// zero before it is used again.
func DeriveCapacity(st domain.PoolState) (capacity domain.Capacity, err error) {
	// math.Int panics past 256 bits.
	defer func() {
		if r := recover(); r != nil {
			capacity, err = domain.Capacity{}, fmt.Errorf("derive: %v: %w", r, domain.ErrOverflow)
		}
	}()

	o := st.Orders
	investSr := domain.ZeroIfNil(o.SeniorSupply)
	investJr := domain.ZeroIfNil(o.JuniorSupply)
	redeemSr := domain.ZeroIfNil(o.SeniorRedeem)
	redeemJr := domain.ZeroIfNil(o.JuniorRedeem)
	for _, v := range []math.Int{investSr, investJr, redeemSr, redeemJr, st.Reserve, st.MaxReserve, st.SeniorDebt, st.SeniorBalance, st.NetAssetValue} {
		if domain.ZeroIfNil(v).IsNegative() {
			return domain.Capacity{}, fmt.Errorf("derive: negative input: %w", domain.ErrMalformedState)
		}
	}

	maxSeniorRatio := domain.ZeroIfNil(st.MaxSeniorRatio)
	if maxSeniorRatio.GTE(domain.Scale) {
		return domain.Capacity{}, fmt.Errorf("derive: max senior ratio %s is not below one: %w", maxSeniorRatio, domain.ErrMalformedState)
	}

	used := math.ZeroInt()
	newUsed := math.ZeroInt()
	newUnused := math.ZeroInt()
	if cl := st.CreditLine; cl != nil {
		used = domain.ZeroIfNil(cl.Used)
		newUsed = domain.ClampSub(used.Add(redeemSr).Add(redeemJr), investSr.Add(investJr))
		newUnused = domain.ClampSub(domain.ZeroIfNil(cl.Available), newUsed)
	}

	newReserve := domain.ClampSub(
		domain.ZeroIfNil(st.Reserve).Add(investSr).Add(investJr),
		redeemSr.Add(redeemJr).Add(newUsed),
	)
	givenMaxReserve := domain.ClampSub(domain.ZeroIfNil(st.MaxReserve), newReserve.Add(newUnused))

	newSeniorDebt, newSeniorBalance := applyCreditDelta(
		domain.ZeroIfNil(st.SeniorDebt), domain.ZeroIfNil(st.SeniorBalance), newUsed.Sub(used))

	newSeniorAsset := domain.ClampSub(newSeniorDebt.Add(newSeniorBalance).Add(investSr), redeemSr)
	newJuniorAsset := domain.ClampSub(domain.ZeroIfNil(st.NetAssetValue).Add(newReserve), newSeniorAsset)

	maxPoolSize, err := domain.MulDiv(newJuniorAsset, domain.Scale, domain.Scale.Sub(maxSeniorRatio))
	if err != nil {
		return domain.Capacity{}, fmt.Errorf("derive: max pool size: %w", err)
	}
	maxSeniorAsset := domain.ClampSub(maxPoolSize, newJuniorAsset)
	givenMaxDropRatio := domain.ClampSub(maxSeniorAsset, newSeniorAsset)

	return domain.Capacity{
		NewReserve:          newReserve,
		NewUsedCreditline:   newUsed,
		NewUnusedCreditline: newUnused,
		NewSeniorAsset:      newSeniorAsset,
		NewJuniorAsset:      newJuniorAsset,
		MaxPoolSize:         maxPoolSize,
		MaxSeniorAsset:      maxSeniorAsset,
		GivenMaxReserve:     givenMaxReserve,
		GivenMaxDropRatio:   givenMaxDropRatio,
		Total:               domain.MinInt(givenMaxReserve, givenMaxDropRatio),
	}, nil
}

// applyCreditDelta moves the signed change in used credit into the senior
// balance. A decrease larger than the balance is taken out of senior debt.
func applyCreditDelta(debt, balance, delta math.Int) (math.Int, math.Int) {
	if !delta.IsNegative() {
		return debt, balance.Add(delta)
	}
	shortfall := delta.Neg()
	if shortfall.LTE(balance) {
		return debt, balance.Sub(shortfall)
	}
	return domain.ClampSub(debt, shortfall.Sub(balance)), math.ZeroInt()
}
