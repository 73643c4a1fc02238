package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/epoch"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
	"github.com/alanyoungcy/poolkeeper/internal/notify"
)

// Report summarizes one task run.
type Report struct {
	Task      string
	RunID     string
	Pools     int
	Failed    map[string]error
	Submitted []domain.TxRecord
	Decisions []domain.Decision
}

// RefreshPools reloads the pool set from the source. On failure the previous
// set stays active.
func (k *Keeper) RefreshPools(ctx context.Context) error {
	start := time.Now()
	logger := k.logger.With(slog.String("task", TaskRefresh), slog.String("run_id", uuid.NewString()))

	pools, err := k.deps.Source.Pools(ctx)
	if err != nil {
		logger.Error("pool refresh failed", slog.String("error", err.Error()))
		k.observe(TaskRefresh, start, 1)
		return fmt.Errorf("keeper: refresh pools: %w", err)
	}

	k.deps.Pools.Replace(pools)
	if k.deps.Metrics != nil {
		k.deps.Metrics.SetPools(len(pools))
	}
	logger.Info("pool set refreshed", slog.Int("pools", len(pools)))
	k.observe(TaskRefresh, start, 0)
	return nil
}

// CloseCheck closes epochs whose orders can be fully served and reports the
// others. Every pool's snapshot is archived.
func (k *Keeper) CloseCheck(ctx context.Context) Report {
	return k.forEachPool(ctx, TaskClose, k.closePool)
}

// SubmitCheck submits a better-scoring solution for pools in their
// submission or challenge period.
func (k *Keeper) SubmitCheck(ctx context.Context) Report {
	return k.forEachPool(ctx, TaskSubmit, k.submitPool)
}

// ExecuteCheck executes epochs whose challenge period has ended.
func (k *Keeper) ExecuteCheck(ctx context.Context) Report {
	return k.forEachPool(ctx, TaskExecute, k.executePool)
}

type poolStep func(ctx context.Context, run *runState, pool domain.Pool, st domain.PoolState, phase domain.EpochPhase) error

type runState struct {
	report *Report
	logger *slog.Logger
}

// forEachPool runs step for each pool in order. A failing pool is logged,
// recorded and skipped; the rest still run.
func (k *Keeper) forEachPool(ctx context.Context, task string, step poolStep) Report {
	start := time.Now()
	pools := k.deps.Pools.List()
	report := Report{
		Task:   task,
		RunID:  uuid.NewString(),
		Pools:  len(pools),
		Failed: make(map[string]error),
	}
	logger := k.logger.With(slog.String("task", task), slog.String("run_id", report.RunID))
	logger.Debug("task started", slog.Int("pools", len(pools)))

	for _, pool := range pools {
		if ctx.Err() != nil {
			break
		}
		run := &runState{report: &report, logger: logger.With(slog.String("pool", pool.ID))}
		if err := k.runPool(ctx, run, pool, step); err != nil {
			err = domain.NewPoolError(pool.ID, err)
			report.Failed[pool.ID] = err
			run.logger.Warn("pool skipped", slog.String("error", err.Error()))
			k.notify(ctx, run.logger, notify.PoolFailure(pool, task, err))
		}
	}

	k.observe(task, start, len(report.Failed))
	logger.Info("task finished",
		slog.Int("pools", report.Pools),
		slog.Int("failed", len(report.Failed)),
		slog.Int("submitted", len(report.Submitted)),
		slog.Duration("took", time.Since(start)),
	)
	return report
}

func (k *Keeper) runPool(ctx context.Context, run *runState, pool domain.Pool, step poolStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	st, err := k.deps.State.AggregateOne(ctx, pool)
	if err != nil {
		return err
	}
	if k.deps.Metrics != nil {
		k.deps.Metrics.ObservePool(st)
	}
	phase := epoch.Classify(st.Epoch, k.now())
	return step(ctx, run, pool, st, phase)
}

func (k *Keeper) closePool(ctx context.Context, run *runState, pool domain.Pool, st domain.PoolState, phase domain.EpochPhase) error {
	dec := domain.Decision{PoolID: pool.ID, Phase: phase, Action: domain.ActionNone}
	if phase == domain.PhaseCanBeClosed {
		var err error
		dec, err = k.deps.Decider.DecideClose(ctx, st)
		if err != nil {
			return err
		}
	} else {
		dec.Reason = "epoch not closable: " + phase.String()
	}
	k.recordDecision(run, dec)
	k.archive(ctx, run.logger, pool, st, dec)

	if phase != domain.PhaseCanBeClosed {
		run.logger.Debug("close skipped", slog.String("phase", phase.String()))
		return nil
	}
	k.notify(ctx, run.logger, notify.CloseSummary(pool, st, dec))

	switch dec.Action {
	case domain.ActionClose:
		data, err := ledger.CloseEpochData()
		if err != nil {
			return err
		}
		return k.submit(ctx, run, pool, dec, data)
	case domain.ActionNotify:
		run.logger.Info("epoch left open for review", slog.String("reason", dec.Reason))
		k.audit(ctx, run.logger, "advisory", map[string]any{
			"pool":   pool.ID,
			"phase":  phase.String(),
			"reason": dec.Reason,
		})
	}
	return nil
}

func (k *Keeper) submitPool(ctx context.Context, run *runState, pool domain.Pool, st domain.PoolState, phase domain.EpochPhase) error {
	if phase != domain.PhaseInSubmissionPeriod && phase != domain.PhaseInChallengePeriod {
		return nil
	}
	dec, err := k.deps.Decider.DecideSubmit(ctx, st, phase)
	if err != nil {
		return err
	}
	k.recordDecision(run, dec)
	if dec.Action != domain.ActionSubmit || dec.Solution == nil {
		run.logger.Debug("no better solution", slog.String("reason", dec.Reason))
		return nil
	}
	data, err := ledger.SubmitSolutionData(*dec.Solution)
	if err != nil {
		return err
	}
	return k.submit(ctx, run, pool, dec, data)
}

func (k *Keeper) executePool(ctx context.Context, run *runState, pool domain.Pool, st domain.PoolState, phase domain.EpochPhase) error {
	if phase != domain.PhaseChallengePeriodEnded {
		return nil
	}
	dec := k.deps.Decider.DecideExecute(ctx, st)
	k.recordDecision(run, dec)
	data, err := ledger.ExecuteEpochData()
	if err != nil {
		return err
	}
	return k.submit(ctx, run, pool, dec, data)
}

// submit hands the write to the submitter. An action already in flight is
// not a failure.
func (k *Keeper) submit(ctx context.Context, run *runState, pool domain.Pool, dec domain.Decision, data []byte) error {
	rec, err := k.deps.Submitter.Submit(ctx, domain.TxRequest{
		PoolID: pool.ID,
		Action: dec.Action,
		To:     pool.Address(domain.ContractCoordinator),
		Data:   data,
	})
	if errors.Is(err, domain.ErrAlreadyInFlight) {
		run.logger.Info("action already in flight", slog.String("action", dec.Action.String()))
		return nil
	}
	if err != nil {
		return err
	}

	run.report.Submitted = append(run.report.Submitted, rec)
	run.logger.Info("action submitted",
		slog.String("action", dec.Action.String()),
		slog.String("tx", rec.Hash),
	)
	k.notify(ctx, run.logger, notify.ActionSubmitted(pool, dec, rec))
	return nil
}

func (k *Keeper) recordDecision(run *runState, dec domain.Decision) {
	run.report.Decisions = append(run.report.Decisions, dec)
	if k.deps.Metrics != nil {
		k.deps.Metrics.ObserveDecision(dec)
	}
}

func (k *Keeper) archive(ctx context.Context, logger *slog.Logger, pool domain.Pool, st domain.PoolState, dec domain.Decision) {
	if k.deps.Archiver == nil {
		return
	}
	key, err := k.deps.Archiver.Archive(ctx, domain.Snapshot{Pool: pool, State: st, Decision: dec, TakenAt: k.now()})
	if err != nil {
		logger.Warn("snapshot archive failed", slog.String("error", err.Error()))
		return
	}
	logger.Debug("snapshot archived", slog.String("key", key))
}

func (k *Keeper) notify(ctx context.Context, logger *slog.Logger, msg notify.Message) {
	if k.deps.Notifier == nil {
		return
	}
	if err := k.deps.Notifier.Notify(ctx, msg); err != nil {
		logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}

func (k *Keeper) audit(ctx context.Context, logger *slog.Logger, event string, detail map[string]any) {
	if k.deps.Audit == nil {
		return
	}
	if err := k.deps.Audit.Log(ctx, event, detail); err != nil {
		logger.Warn("audit write failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (k *Keeper) observe(task string, start time.Time, failures int) {
	k.markRun(task, time.Now())
	if k.deps.Metrics != nil {
		k.deps.Metrics.ObserveTask(task, time.Since(start), failures)
	}
}
