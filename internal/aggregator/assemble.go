package aggregator

import (
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
)

// reader pulls typed fields for one pool out of batch results and remembers
// the first failure.
type reader struct {
	poolID string
	res    *ledger.Results
	err    error
}

func (r *reader) value(field string) (ledger.Value, bool) {
	if r.err != nil {
		return ledger.Value{}, false
	}
	v, err := r.res.Get(key(r.poolID, field))
	if err != nil {
		r.err = fmt.Errorf("%s: %w: %w", field, domain.ErrMalformedState, err)
		return ledger.Value{}, false
	}
	return v, true
}

func (r *reader) int(field string) math.Int {
	v, ok := r.value(field)
	if !ok {
		return math.ZeroInt()
	}
	n, err := v.Int()
	if err != nil {
		r.err = fmt.Errorf("%s: %w: %w", field, domain.ErrMalformedState, err)
		return math.ZeroInt()
	}
	return n
}

func (r *reader) uint64(field string) uint64 {
	v, ok := r.value(field)
	if !ok {
		return 0
	}
	n, err := v.Uint64()
	if err != nil {
		r.err = fmt.Errorf("%s: %w: %w", field, domain.ErrMalformedState, err)
		return 0
	}
	return n
}

func (r *reader) bool(field string) bool {
	v, ok := r.value(field)
	if !ok {
		return false
	}
	b, err := v.Bool()
	if err != nil {
		r.err = fmt.Errorf("%s: %w: %w", field, domain.ErrMalformedState, err)
		return false
	}
	return b
}

// Assemble builds the raw state of pool from batch results. It does not
// derive capacity.
func Assemble(pool domain.Pool, res *ledger.Results, now time.Time) (domain.PoolState, error) {
	r := &reader{poolID: pool.ID, res: res}

	st := domain.PoolState{
		PoolID:           pool.ID,
		Reserve:          r.int(fieldReserve),
		NetAssetValue:    r.int(fieldNAV),
		SeniorDebt:       r.int(fieldSeniorDebt),
		SeniorBalance:    r.int(fieldSeniorBalance),
		MaxReserve:       r.int(fieldMaxReserve),
		MaxSeniorRatio:   r.int(fieldMaxSeniorRatio),
		SeniorRatio:      r.int(fieldSeniorRatio),
		SeniorTokenPrice: r.int(fieldSeniorPrice),
		JuniorTokenPrice: r.int(fieldJuniorPrice),
		Epoch: domain.EpochSignals{
			CurrentEpoch:          r.uint64(fieldEpoch),
			LastEpochClosed:       r.uint64(fieldLastClosed),
			MinimumEpochTime:      r.uint64(fieldMinEpochTime),
			SubmissionPeriod:      r.bool(fieldSubmission),
			MinChallengePeriodEnd: r.uint64(fieldChallengeEnd),
			BestSubScore:          r.int(fieldBestScore),
		},
		Weights: domain.Weights{
			SeniorRedeem: r.int(fieldWeightSeniorRedm),
			JuniorRedeem: r.int(fieldWeightJuniorRedm),
			JuniorSupply: r.int(fieldWeightJuniorSupp),
			SeniorSupply: r.int(fieldWeightSeniorSupp),
		},
		ReadAt: now,
	}

	if st.Epoch.SubmissionPeriod {
		// Orders are locked in the coordinator once the epoch is closed.
		st.Orders = domain.Orders{
			SeniorRedeem: r.int(fieldOrderSeniorRedm),
			JuniorRedeem: r.int(fieldOrderJuniorRedm),
			JuniorSupply: r.int(fieldOrderJuniorSupp),
			SeniorSupply: r.int(fieldOrderSeniorSupp),
		}
	} else {
		seniorRedeemTokens := r.int(fieldSeniorRedeem)
		juniorRedeemTokens := r.int(fieldJuniorRedeem)
		st.Orders = domain.Orders{
			SeniorSupply: r.int(fieldSeniorSupply),
			JuniorSupply: r.int(fieldJuniorSupply),
		}
		if r.err == nil {
			var err error
			if st.Orders.SeniorRedeem, err = tokensToCurrency(seniorRedeemTokens, st.SeniorTokenPrice); err != nil {
				r.err = fmt.Errorf("senior redeem: %w", err)
			} else if st.Orders.JuniorRedeem, err = tokensToCurrency(juniorRedeemTokens, st.JuniorTokenPrice); err != nil {
				r.err = fmt.Errorf("junior redeem: %w", err)
			}
		}
	}

	if pool.HasCreditLine() {
		st.CreditLine = &domain.CreditLine{
			Used:      r.int(fieldCreditUsed),
			Available: r.int(fieldCreditLine),
			Unused:    r.int(fieldCreditRemaining),
		}
	}

	if r.err != nil {
		return domain.PoolState{}, domain.NewPoolError(pool.ID, r.err)
	}
	return st, nil
}

// tokensToCurrency converts a tranche token amount to currency at a
// 27-decimal token price.
func tokensToCurrency(tokens, price math.Int) (math.Int, error) {
	return domain.MulDiv(tokens, price, domain.Scale)
}
