// Package keeper drives the epoch lifecycle of every managed pool from a
// set of independent scheduled tasks.
package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/notify"
)

// Task names, used in logs, metrics and the audit trail.
const (
	TaskRefresh = "refresh_pools"
	TaskClose   = "close_check"
	TaskSubmit  = "submit_check"
	TaskExecute = "execute_check"
)

// StateReader reads one pool's derived state.
type StateReader interface {
	AggregateOne(ctx context.Context, pool domain.Pool) (domain.PoolState, error)
}

// Decider applies the per-phase rules.
type Decider interface {
	DecideClose(ctx context.Context, st domain.PoolState) (domain.Decision, error)
	DecideSubmit(ctx context.Context, st domain.PoolState, phase domain.EpochPhase) (domain.Decision, error)
	DecideExecute(ctx context.Context, st domain.PoolState) domain.Decision
}

// Submitter broadcasts ledger writes.
type Submitter interface {
	Submit(ctx context.Context, req domain.TxRequest) (domain.TxRecord, error)
}

// Notifier delivers operator messages.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Metrics receives task and decision observations.
type Metrics interface {
	ObserveTask(task string, took time.Duration, failures int)
	ObserveDecision(d domain.Decision)
	ObservePool(st domain.PoolState)
	SetPools(n int)
}

// Schedule holds the cron specs (seconds precision) of each task.
type Schedule struct {
	Refresh  string
	Close    string
	Submit   string
	Execute  string
	Location *time.Location
}

// DefaultSchedule refreshes every 30m, closes daily at 12:00 UTC, checks
// submissions every 10m and executions every 5m.
func DefaultSchedule() Schedule {
	return Schedule{
		Refresh:  "@every 30m",
		Close:    "0 0 12 * * *",
		Submit:   "@every 10m",
		Execute:  "@every 5m",
		Location: time.UTC,
	}
}

// Deps are the collaborators of a Keeper. Notifier, Archiver, Audit and
// Metrics are optional.
type Deps struct {
	Source    domain.PoolSource
	Pools     *PoolSet
	State     StateReader
	Decider   Decider
	Submitter Submitter
	Notifier  Notifier
	Archiver  domain.SnapshotArchiver
	Audit     domain.AuditLog
	Metrics   Metrics
}

// Keeper owns the scheduler and runs the tasks against the pool set.
type Keeper struct {
	deps     Deps
	schedule Schedule
	cron     *cron.Cron
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// New validates deps and schedule and returns a Keeper.
func New(schedule Schedule, deps Deps, logger *slog.Logger) (*Keeper, error) {
	if deps.Source == nil || deps.State == nil || deps.Decider == nil || deps.Submitter == nil {
		return nil, fmt.Errorf("keeper: source, state reader, decider and submitter are required")
	}
	if deps.Pools == nil {
		deps.Pools = NewPoolSet()
	}
	if schedule.Location == nil {
		schedule.Location = time.UTC
	}
	logger = logger.With(slog.String("component", "keeper"))

	k := &Keeper{
		deps:     deps,
		schedule: schedule,
		now:      time.Now,
		logger:   logger,
		lastRun:  make(map[string]time.Time),
	}
	k.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(schedule.Location),
		cron.WithLogger(cronLogger{logger: logger}),
	)
	return k, nil
}

// WithClock overrides the time source used for phase classification.
func (k *Keeper) WithClock(now func() time.Time) *Keeper {
	k.now = now
	return k
}

// Pools returns the active pool set.
func (k *Keeper) Pools() *PoolSet { return k.deps.Pools }

// register adds every task to the scheduler. Each job skips a tick while its
// previous run is still going; jobs never wait on each other.
func (k *Keeper) register(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{TaskRefresh, k.schedule.Refresh, func(ctx context.Context) { _ = k.RefreshPools(ctx) }},
		{TaskClose, k.schedule.Close, func(ctx context.Context) { k.CloseCheck(ctx) }},
		{TaskSubmit, k.schedule.Submit, func(ctx context.Context) { k.SubmitCheck(ctx) }},
		{TaskExecute, k.schedule.Execute, func(ctx context.Context) { k.ExecuteCheck(ctx) }},
	}
	for _, j := range jobs {
		if j.spec == "" {
			k.logger.Info("task disabled", slog.String("task", j.name))
			continue
		}
		run := j.run
		job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{logger: k.logger})).
			Then(cron.FuncJob(func() { run(ctx) }))
		if _, err := k.cron.AddJob(j.spec, job); err != nil {
			return fmt.Errorf("keeper: register %s %q: %w", j.name, j.spec, err)
		}
	}
	return nil
}

// Run loads the pool set, starts the scheduler and blocks until ctx is
// cancelled. Running tasks are allowed to finish before it returns.
func (k *Keeper) Run(ctx context.Context) error {
	if err := k.register(ctx); err != nil {
		return err
	}
	if err := k.RefreshPools(ctx); err != nil {
		k.logger.Warn("initial pool refresh failed; retrying on schedule",
			slog.String("error", err.Error()),
		)
	}

	k.cron.Start()
	k.logger.Info("scheduler started",
		slog.String("refresh", k.schedule.Refresh),
		slog.String("close", k.schedule.Close),
		slog.String("submit", k.schedule.Submit),
		slog.String("execute", k.schedule.Execute),
	)

	<-ctx.Done()
	stopped := k.cron.Stop()
	<-stopped.Done()
	k.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (k *Keeper) markRun(task string, at time.Time) {
	k.mu.Lock()
	k.lastRun[task] = at
	k.mu.Unlock()
}

// HealthDetail reports the pool count and the last completion of each task.
func (k *Keeper) HealthDetail() map[string]any {
	k.mu.Lock()
	last := make(map[string]string, len(k.lastRun))
	for task, at := range k.lastRun {
		last[task] = at.UTC().Format(time.RFC3339)
	}
	k.mu.Unlock()

	return map[string]any{
		"pools":     k.deps.Pools.Len(),
		"last_runs": last,
	}
}
