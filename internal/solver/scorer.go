package solver

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// LinearScorer scores a solution as the weighted sum of its four amounts,
// using the weights stored in the pool's coordinator.
type LinearScorer struct{}

// Score returns sum(weight_i * amount_i).
func (LinearScorer) Score(st domain.PoolState, sol domain.Solution) (math.Int, error) {
	w := st.Weights
	pairs := [][2]math.Int{
		{domain.ZeroIfNil(w.SeniorRedeem), domain.ZeroIfNil(sol.SeniorRedeem)},
		{domain.ZeroIfNil(w.JuniorRedeem), domain.ZeroIfNil(sol.JuniorRedeem)},
		{domain.ZeroIfNil(w.JuniorSupply), domain.ZeroIfNil(sol.JuniorSupply)},
		{domain.ZeroIfNil(w.SeniorSupply), domain.ZeroIfNil(sol.SeniorSupply)},
	}
	total := math.ZeroInt()
	for _, p := range pairs {
		term, err := p[0].SafeMul(p[1])
		if err != nil {
			return math.Int{}, fmt.Errorf("solver: score: %w", domain.ErrOverflow)
		}
		total, err = total.SafeAdd(term)
		if err != nil {
			return math.Int{}, fmt.Errorf("solver: score: %w", domain.ErrOverflow)
		}
	}
	return total, nil
}
