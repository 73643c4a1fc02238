package solution

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// Check reports whether sol can be applied to st: no field may exceed its
// order, the reserve must stay solvent and neither the max reserve nor the
// max senior ratio may be newly breached or made worse.
func Check(st domain.PoolState, sol domain.Solution) error {
	sol = normalize(sol)
	o := normalizeOrders(st.Orders)
	fields := []struct {
		name       string
		sol, order math.Int
	}{
		{"seniorSupply", sol.SeniorSupply, o.SeniorSupply},
		{"juniorSupply", sol.JuniorSupply, o.JuniorSupply},
		{"seniorRedeem", sol.SeniorRedeem, o.SeniorRedeem},
		{"juniorRedeem", sol.JuniorRedeem, o.JuniorRedeem},
	}
	for _, f := range fields {
		s, ord := domain.ZeroIfNil(f.sol), domain.ZeroIfNil(f.order)
		if s.IsNegative() {
			return fmt.Errorf("%w: %s is negative", domain.ErrInfeasibleSolution, f.name)
		}
		if s.GT(ord) {
			return fmt.Errorf("%w: %s %s exceeds order %s", domain.ErrInfeasibleSolution, f.name, s, ord)
		}
	}

	reserve := domain.ZeroIfNil(st.Reserve)
	in := sol.SeniorSupply.Add(sol.JuniorSupply)
	out := sol.SeniorRedeem.Add(sol.JuniorRedeem)
	if out.GT(reserve.Add(in)) {
		return fmt.Errorf("%w: redemptions exceed reserve", domain.ErrInfeasibleSolution)
	}
	newReserve := reserve.Add(in).Sub(out)
	maxReserve := domain.ZeroIfNil(st.MaxReserve)
	if newReserve.GT(maxReserve) && newReserve.GT(reserve) {
		return fmt.Errorf("%w: reserve %s above max reserve %s", domain.ErrInfeasibleSolution, newReserve, maxReserve)
	}

	ratio, err := SeniorRatioAfter(st, sol)
	if err != nil {
		return err
	}
	maxRatio := domain.ZeroIfNil(st.MaxSeniorRatio)
	if ratio.GT(maxRatio) && ratio.GT(domain.ZeroIfNil(st.SeniorRatio)) {
		return fmt.Errorf("%w: senior ratio %s above max %s", domain.ErrInfeasibleSolution,
			domain.FormatRatio(ratio), domain.FormatRatio(maxRatio))
	}
	return nil
}

// SeniorRatioAfter is the senior share of the pool, as a 27-decimal ratio,
// once sol is applied.
func SeniorRatioAfter(st domain.PoolState, sol domain.Solution) (math.Int, error) {
	sol = normalize(sol)
	senior := domain.ClampSub(
		domain.ZeroIfNil(st.SeniorDebt).Add(domain.ZeroIfNil(st.SeniorBalance)).Add(sol.SeniorSupply),
		sol.SeniorRedeem,
	)
	reserve := domain.ClampSub(
		domain.ZeroIfNil(st.Reserve).Add(sol.SeniorSupply).Add(sol.JuniorSupply),
		sol.SeniorRedeem.Add(sol.JuniorRedeem),
	)
	total := domain.ZeroIfNil(st.NetAssetValue).Add(reserve)
	if total.IsZero() {
		return math.ZeroInt(), nil
	}
	return domain.MulDiv(senior, domain.Scale, total)
}

// Fulfillment returns the share of each tranche's orders the solution
// serves, as 27-decimal ratios. An empty order book counts as fully served.
func Fulfillment(o domain.Orders, sol domain.Solution) (senior, junior math.Int) {
	share := func(got, want math.Int) math.Int {
		if want.IsZero() {
			return domain.Scale
		}
		v, err := domain.MulDiv(got, domain.Scale, want)
		if err != nil {
			return math.ZeroInt()
		}
		return v
	}
	return share(sol.SeniorTotal(), o.SeniorTotal()), share(sol.JuniorTotal(), o.JuniorTotal())
}
