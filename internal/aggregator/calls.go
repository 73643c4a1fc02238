package aggregator

import (
	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
)

// Result field names, appended to the pool ID to form batch keys.
const (
	fieldReserve          = "reserve"
	fieldNAV              = "nav"
	fieldSeniorDebt       = "seniorDebt"
	fieldSeniorBalance    = "seniorBalance"
	fieldMaxReserve       = "maxReserve"
	fieldMaxSeniorRatio   = "maxSeniorRatio"
	fieldSeniorRatio      = "seniorRatio"
	fieldSeniorPrice      = "seniorTokenPrice"
	fieldJuniorPrice      = "juniorTokenPrice"
	fieldSeniorSupply     = "senior/totalSupply"
	fieldSeniorRedeem     = "senior/totalRedeem"
	fieldJuniorSupply     = "junior/totalSupply"
	fieldJuniorRedeem     = "junior/totalRedeem"
	fieldEpoch            = "currentEpoch"
	fieldLastClosed       = "lastEpochClosed"
	fieldMinEpochTime     = "minimumEpochTime"
	fieldSubmission       = "submissionPeriod"
	fieldChallengeEnd     = "minChallengePeriodEnd"
	fieldBestScore        = "bestSubScore"
	fieldOrderSeniorRedm  = "order/seniorRedeem"
	fieldOrderJuniorRedm  = "order/juniorRedeem"
	fieldOrderJuniorSupp  = "order/juniorSupply"
	fieldOrderSeniorSupp  = "order/seniorSupply"
	fieldWeightSeniorRedm = "weight/seniorRedeem"
	fieldWeightJuniorRedm = "weight/juniorRedeem"
	fieldWeightJuniorSupp = "weight/juniorSupply"
	fieldWeightSeniorSupp = "weight/seniorSupply"
	fieldCreditUsed       = "clerk/debt"
	fieldCreditLine       = "clerk/creditline"
	fieldCreditRemaining  = "clerk/remainingCredit"
)

func key(poolID, field string) string { return poolID + "/" + field }

// BuildCalls returns the reads that make up one pool's state. The clerk
// reads are only included for pools with a credit line.
func BuildCalls(pool domain.Pool) []ledger.Call {
	id := pool.ID
	amount := ledger.AsFixed(domain.AmountDecimals)
	ratio := ledger.AsFixed(domain.RatioDecimals)
	k := func(field string, d ledger.Decoder) ledger.Return { return ledger.Ret(key(id, field), d) }

	reserve := pool.Address(domain.ContractReserve)
	assessor := pool.Address(domain.ContractAssessor)
	coordinator := pool.Address(domain.ContractCoordinator)
	senior := pool.Address(domain.ContractSeniorTranche)
	junior := pool.Address(domain.ContractJuniorTranche)

	calls := []ledger.Call{
		ledger.NewCall(reserve, "totalBalance()", k(fieldReserve, amount)),

		ledger.NewCall(assessor, "getNAV()", k(fieldNAV, amount)),
		ledger.NewCall(assessor, "seniorDebt()", k(fieldSeniorDebt, amount)),
		ledger.NewCall(assessor, "seniorBalance()", k(fieldSeniorBalance, amount)),
		ledger.NewCall(assessor, "maxReserve()", k(fieldMaxReserve, amount)),
		ledger.NewCall(assessor, "maxSeniorRatio()", k(fieldMaxSeniorRatio, ratio)),
		ledger.NewCall(assessor, "seniorRatio()", k(fieldSeniorRatio, ratio)),
		ledger.NewCall(assessor, "calcSeniorTokenPrice()", k(fieldSeniorPrice, ratio)),
		ledger.NewCall(assessor, "calcJuniorTokenPrice()", k(fieldJuniorPrice, ratio)),

		ledger.NewCall(senior, "totalSupply()", k(fieldSeniorSupply, amount)),
		ledger.NewCall(senior, "totalRedeem()", k(fieldSeniorRedeem, amount)),
		ledger.NewCall(junior, "totalSupply()", k(fieldJuniorSupply, amount)),
		ledger.NewCall(junior, "totalRedeem()", k(fieldJuniorRedeem, amount)),

		ledger.NewCall(coordinator, "currentEpoch()", k(fieldEpoch, ledger.AsUint())),
		ledger.NewCall(coordinator, "lastEpochClosed()", k(fieldLastClosed, ledger.AsUint())),
		ledger.NewCall(coordinator, "minimumEpochTime()", k(fieldMinEpochTime, ledger.AsUint())),
		ledger.NewCall(coordinator, "submissionPeriod()", k(fieldSubmission, ledger.AsBool())),
		ledger.NewCall(coordinator, "minChallengePeriodEnd()", k(fieldChallengeEnd, ledger.AsUint())),
		ledger.NewCall(coordinator, "bestSubScore()", k(fieldBestScore, ledger.AsUint())),
		ledger.NewCall(coordinator, "order()",
			k(fieldOrderSeniorRedm, amount),
			k(fieldOrderJuniorRedm, amount),
			k(fieldOrderJuniorSupp, amount),
			k(fieldOrderSeniorSupp, amount),
		),
		ledger.NewCall(coordinator, "weightSeniorRedeem()", k(fieldWeightSeniorRedm, ledger.AsUint())),
		ledger.NewCall(coordinator, "weightJuniorRedeem()", k(fieldWeightJuniorRedm, ledger.AsUint())),
		ledger.NewCall(coordinator, "weightJuniorSupply()", k(fieldWeightJuniorSupp, ledger.AsUint())),
		ledger.NewCall(coordinator, "weightSeniorSupply()", k(fieldWeightSeniorSupp, ledger.AsUint())),
	}

	if clerk := pool.Address(domain.ContractClerk); clerk != "" {
		calls = append(calls,
			ledger.NewCall(clerk, "debt()", k(fieldCreditUsed, amount)),
			ledger.NewCall(clerk, "creditline()", k(fieldCreditLine, amount)),
			ledger.NewCall(clerk, "remainingCredit()", k(fieldCreditRemaining, amount)),
		)
	}
	return calls
}
