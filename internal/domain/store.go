package domain

import (
	"context"
	"math/big"
	"time"

	"cosmossdk.io/math"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	PoolID string
	Event  string
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is one row of the action audit trail.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditLog records actions and their outcomes. It is write-mostly; nothing
// the keeper decides depends on reading it back.
type AuditLog interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Snapshot is the archived view of a pool at a close check.
type Snapshot struct {
	Pool     Pool      `json:"pool"`
	State    PoolState `json:"state"`
	Decision Decision  `json:"decision"`
	TakenAt  time.Time `json:"takenAt"`
}

// SnapshotArchiver stores pool snapshots and returns the object key.
type SnapshotArchiver interface {
	Archive(ctx context.Context, snap Snapshot) (string, error)
}

// PoolSource loads the current set of managed pools.
type PoolSource interface {
	Pools(ctx context.Context) ([]Pool, error)
}

// Solver proposes an allocation of a pool's pending orders.
type Solver interface {
	Solve(ctx context.Context, state PoolState) (Solution, error)
}

// Scorer ranks a solution the same way the coordinator contract does.
type Scorer interface {
	Score(state PoolState, sol Solution) (math.Int, error)
}

// GasPriceCache holds the latest fast gas price observed by the gas feed.
type GasPriceCache interface {
	SetFastPrice(ctx context.Context, price *big.Int, observedAt time.Time) error
	// FastPrice returns ErrNotFound when no price has been stored.
	FastPrice(ctx context.Context) (*big.Int, time.Time, error)
}
