// Package solution decides, per pool and phase, whether the keeper should
// close, submit, execute or only report.
package solution

import (
	"context"
	"fmt"
	"log/slog"

	"cosmossdk.io/math"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// Orchestrator runs the solver and applies the close, submit and execute
// rules.
type Orchestrator struct {
	solver domain.Solver
	scorer domain.Scorer
	logger *slog.Logger
}

// New returns an Orchestrator.
func New(solver domain.Solver, scorer domain.Scorer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		solver: solver,
		scorer: scorer,
		logger: logger.With(slog.String("component", "orchestrator")),
	}
}

// Decide dispatches on phase. Phases without an action yield ActionNone.
func (o *Orchestrator) Decide(ctx context.Context, phase domain.EpochPhase, st domain.PoolState) (domain.Decision, error) {
	switch phase {
	case domain.PhaseCanBeClosed:
		return o.DecideClose(ctx, st)
	case domain.PhaseInSubmissionPeriod, domain.PhaseInChallengePeriod:
		return o.DecideSubmit(ctx, st, phase)
	case domain.PhaseChallengePeriodEnded:
		return o.DecideExecute(ctx, st), nil
	default:
		return domain.Decision{PoolID: st.PoolID, Phase: phase, Action: domain.ActionNone, Reason: "epoch is open"}, nil
	}
}

// DecideClose closes the epoch only when the solution fully serves both
// tranches, or when the only material order is a senior redemption that the
// solution serves in full. Anything else is reported for operator review.
func (o *Orchestrator) DecideClose(ctx context.Context, st domain.PoolState) (domain.Decision, error) {
	st.Orders = normalizeOrders(st.Orders)
	d := domain.Decision{PoolID: st.PoolID, Phase: domain.PhaseCanBeClosed, Score: math.ZeroInt()}

	sol, err := o.solve(ctx, st)
	if err != nil {
		return d, err
	}
	d.Solution = &sol

	orders := st.Orders
	full := sol.SeniorTotal().Equal(orders.SeniorTotal()) && sol.JuniorTotal().Equal(orders.JuniorTotal())
	seniorRedeemOnly := orders.SeniorSupply.LT(domain.Dust) &&
		orders.JuniorSupply.LT(domain.Dust) &&
		orders.JuniorRedeem.LT(domain.Dust) &&
		sol.SeniorRedeem.Equal(orders.SeniorRedeem)

	switch {
	case full:
		d.Action = domain.ActionClose
		d.Fulfilled = true
		d.Reason = "all orders can be fulfilled"
	case seniorRedeemOnly:
		d.Action = domain.ActionClose
		d.Reason = "only senior redemptions pending and fully served"
	default:
		d.Action = domain.ActionNotify
		senior, junior := Fulfillment(orders, sol)
		d.Reason = fmt.Sprintf("partial fulfillment (senior %s, junior %s)",
			domain.FormatRatio(senior), domain.FormatRatio(junior))
	}
	return d, nil
}

// DecideSubmit submits only a solution that beats the best score already
// recorded on the ledger.
func (o *Orchestrator) DecideSubmit(ctx context.Context, st domain.PoolState, phase domain.EpochPhase) (domain.Decision, error) {
	st.Orders = normalizeOrders(st.Orders)
	d := domain.Decision{PoolID: st.PoolID, Phase: phase, Score: math.ZeroInt()}

	sol, err := o.solve(ctx, st)
	if err != nil {
		return d, err
	}
	d.Solution = &sol

	score, err := o.scorer.Score(st, sol)
	if err != nil {
		return d, fmt.Errorf("solution: score: %w", err)
	}
	d.Score = score
	best := domain.ZeroIfNil(st.Epoch.BestSubScore)

	if score.GT(best) {
		d.Action = domain.ActionSubmit
		d.Reason = fmt.Sprintf("score %s beats best %s", score, best)
	} else {
		d.Action = domain.ActionNone
		d.Reason = fmt.Sprintf("score %s does not beat best %s", score, best)
	}
	d.Fulfilled = sol.SeniorTotal().Equal(st.Orders.SeniorTotal()) && sol.JuniorTotal().Equal(st.Orders.JuniorTotal())
	return d, nil
}

// DecideExecute always executes. The solver only supplies figures for the
// notification; its failure is recorded in the reason and nothing else.
func (o *Orchestrator) DecideExecute(ctx context.Context, st domain.PoolState) domain.Decision {
	st.Orders = normalizeOrders(st.Orders)
	d := domain.Decision{
		PoolID: st.PoolID,
		Phase:  domain.PhaseChallengePeriodEnded,
		Action: domain.ActionExecute,
		Score:  math.ZeroInt(),
		Reason: "challenge period ended",
	}
	sol, err := o.solve(ctx, st)
	if err != nil {
		o.logger.Warn("solver unavailable for execute summary",
			slog.String("pool", st.PoolID),
			slog.String("error", err.Error()),
		)
		d.Reason = "challenge period ended (solver unavailable: " + err.Error() + ")"
		return d
	}
	d.Solution = &sol
	return d
}

func (o *Orchestrator) solve(ctx context.Context, st domain.PoolState) (domain.Solution, error) {
	sol, err := o.solver.Solve(ctx, st)
	if err != nil {
		return domain.Solution{}, fmt.Errorf("solution: solve: %w", err)
	}
	sol = normalize(sol)
	if err := Check(st, sol); err != nil {
		return domain.Solution{}, fmt.Errorf("solution: %w", err)
	}
	return sol, nil
}

func normalize(sol domain.Solution) domain.Solution {
	sol.SeniorSupply = domain.ZeroIfNil(sol.SeniorSupply)
	sol.JuniorSupply = domain.ZeroIfNil(sol.JuniorSupply)
	sol.SeniorRedeem = domain.ZeroIfNil(sol.SeniorRedeem)
	sol.JuniorRedeem = domain.ZeroIfNil(sol.JuniorRedeem)
	return sol
}

func normalizeOrders(o domain.Orders) domain.Orders {
	o.SeniorSupply = domain.ZeroIfNil(o.SeniorSupply)
	o.JuniorSupply = domain.ZeroIfNil(o.JuniorSupply)
	o.SeniorRedeem = domain.ZeroIfNil(o.SeniorRedeem)
	o.JuniorRedeem = domain.ZeroIfNil(o.JuniorRedeem)
	return o
}
