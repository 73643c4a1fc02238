package domain

import (
	"time"

	"cosmossdk.io/math"
)

// Orders are the pending investment and redemption amounts of a pool, in
// currency at 18 decimals.
type Orders struct {
	SeniorSupply math.Int `json:"seniorSupply"`
	JuniorSupply math.Int `json:"juniorSupply"`
	SeniorRedeem math.Int `json:"seniorRedeem"`
	JuniorRedeem math.Int `json:"juniorRedeem"`
}

// ZeroOrders returns an Orders value with every field set to zero.
func ZeroOrders() Orders {
	return Orders{
		SeniorSupply: math.ZeroInt(),
		JuniorSupply: math.ZeroInt(),
		SeniorRedeem: math.ZeroInt(),
		JuniorRedeem: math.ZeroInt(),
	}
}

// SeniorTotal is the sum of senior supply and redeem.
func (o Orders) SeniorTotal() math.Int { return o.SeniorSupply.Add(o.SeniorRedeem) }

// JuniorTotal is the sum of junior supply and redeem.
func (o Orders) JuniorTotal() math.Int { return o.JuniorSupply.Add(o.JuniorRedeem) }

// Solution is an allocation of the pending orders chosen by the solver.
type Solution struct {
	SeniorSupply math.Int `json:"seniorSupply"`
	JuniorSupply math.Int `json:"juniorSupply"`
	SeniorRedeem math.Int `json:"seniorRedeem"`
	JuniorRedeem math.Int `json:"juniorRedeem"`
}

// SeniorTotal is the sum of senior supply and redeem.
func (s Solution) SeniorTotal() math.Int { return s.SeniorSupply.Add(s.SeniorRedeem) }

// JuniorTotal is the sum of junior supply and redeem.
func (s Solution) JuniorTotal() math.Int { return s.JuniorSupply.Add(s.JuniorRedeem) }

// CreditLine is the optional clerk-managed credit facility.
type CreditLine struct {
	Used      math.Int `json:"used"`
	Available math.Int `json:"available"`
	Unused    math.Int `json:"unused"`
}

// EpochSignals are the raw coordinator readings the phase is derived from.
// Times are unix seconds as stored on the ledger.
type EpochSignals struct {
	CurrentEpoch          uint64   `json:"currentEpoch"`
	LastEpochClosed       uint64   `json:"lastEpochClosed"`
	MinimumEpochTime      uint64   `json:"minimumEpochTime"`
	SubmissionPeriod      bool     `json:"submissionPeriod"`
	MinChallengePeriodEnd uint64   `json:"minChallengePeriodEnd"`
	BestSubScore          math.Int `json:"bestSubScore"`
}

// Weights are the coordinator's per-order scoring weights.
type Weights struct {
	SeniorRedeem math.Int `json:"seniorRedeem"`
	JuniorRedeem math.Int `json:"juniorRedeem"`
	JuniorSupply math.Int `json:"juniorSupply"`
	SeniorSupply math.Int `json:"seniorSupply"`
}

// PoolState is the coherent financial picture of one pool assembled from a
// single read batch. Amounts carry 18 decimals and ratios 27.
type PoolState struct {
	PoolID           string       `json:"poolId"`
	Reserve          math.Int     `json:"reserve"`
	NetAssetValue    math.Int     `json:"netAssetValue"`
	SeniorDebt       math.Int     `json:"seniorDebt"`
	SeniorBalance    math.Int     `json:"seniorBalance"`
	MaxReserve       math.Int     `json:"maxReserve"`
	MaxSeniorRatio   math.Int     `json:"maxSeniorRatio"`
	SeniorRatio      math.Int     `json:"seniorRatio"`
	SeniorTokenPrice math.Int     `json:"seniorTokenPrice"`
	JuniorTokenPrice math.Int     `json:"juniorTokenPrice"`
	Orders           Orders       `json:"orders"`
	CreditLine       *CreditLine  `json:"creditLine,omitempty"`
	Epoch            EpochSignals `json:"epoch"`
	Weights          Weights      `json:"weights"`
	Capacity         Capacity     `json:"capacity"`
	ReadAt           time.Time    `json:"readAt"`
}

// Capacity is derived from a PoolState after the pending orders are applied.
// Every field is non-negative.
type Capacity struct {
	NewReserve          math.Int `json:"newReserve"`
	NewUsedCreditline   math.Int `json:"newUsedCreditline"`
	NewUnusedCreditline math.Int `json:"newUnusedCreditline"`
	NewSeniorAsset      math.Int `json:"newSeniorAsset"`
	NewJuniorAsset      math.Int `json:"newJuniorAsset"`
	MaxPoolSize         math.Int `json:"maxPoolSize"`
	MaxSeniorAsset      math.Int `json:"maxSeniorAsset"`
	GivenMaxReserve     math.Int `json:"givenMaxReserve"`
	GivenMaxDropRatio   math.Int `json:"givenMaxDropRatio"`
	Total               math.Int `json:"total"`
}
