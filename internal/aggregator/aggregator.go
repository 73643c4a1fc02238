// Package aggregator reads each pool's scattered on-chain state in one
// batched round trip and turns it into a coherent PoolState.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
)

// BatchReader executes a list of calls in one round trip.
type BatchReader interface {
	ReadBatch(ctx context.Context, calls []ledger.Call) (*ledger.Results, error)
}

// Aggregator builds PoolStates from ledger reads.
type Aggregator struct {
	reader BatchReader
	now    func() time.Time
	logger *slog.Logger
}

// New returns an Aggregator reading through reader.
func New(reader BatchReader, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		reader: reader,
		now:    time.Now,
		logger: logger.With(slog.String("component", "aggregator")),
	}
}

// WithClock overrides the time source used to stamp states.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Aggregate reads every pool in one batch. Pools whose fields are missing or
// malformed are left out of states and reported in failed; only a transport
// failure of the whole batch is returned as err.
func (a *Aggregator) Aggregate(ctx context.Context, pools []domain.Pool) (states map[string]domain.PoolState, failed map[string]error, err error) {
	states = make(map[string]domain.PoolState, len(pools))
	failed = make(map[string]error)

	var calls []ledger.Call
	for _, p := range pools {
		if err := p.Validate(); err != nil {
			failed[p.ID] = err
			continue
		}
		calls = append(calls, BuildCalls(p)...)
	}
	if len(calls) == 0 {
		return states, failed, nil
	}

	res, err := a.reader.ReadBatch(ctx, calls)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregator: read batch: %w", err)
	}

	now := a.now()
	for _, p := range pools {
		if _, bad := failed[p.ID]; bad {
			continue
		}
		st, err := a.build(p, res, now)
		if err != nil {
			failed[p.ID] = err
			a.logger.Warn("pool state unavailable",
				slog.String("pool", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		states[p.ID] = st
	}
	return states, failed, nil
}

// AggregateOne reads a single pool.
func (a *Aggregator) AggregateOne(ctx context.Context, pool domain.Pool) (domain.PoolState, error) {
	states, failed, err := a.Aggregate(ctx, []domain.Pool{pool})
	if err != nil {
		return domain.PoolState{}, err
	}
	if err := failed[pool.ID]; err != nil {
		return domain.PoolState{}, err
	}
	st, ok := states[pool.ID]
	if !ok {
		return domain.PoolState{}, domain.NewPoolError(pool.ID, domain.ErrNotFound)
	}
	return st, nil
}

func (a *Aggregator) build(p domain.Pool, res *ledger.Results, now time.Time) (domain.PoolState, error) {
	st, err := Assemble(p, res, now)
	if err != nil {
		return domain.PoolState{}, err
	}
	capacity, err := DeriveCapacity(st)
	if err != nil {
		return domain.PoolState{}, domain.NewPoolError(p.ID, err)
	}
	st.Capacity = capacity
	return st, nil
}
