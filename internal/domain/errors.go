package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrAlreadyInFlight     = errors.New("transaction already in flight")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrMalformedState      = errors.New("malformed pool state")
	ErrInfeasibleSolution  = errors.New("infeasible solution")
	ErrOverflow            = errors.New("arithmetic overflow")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrSigningFailed       = errors.New("signing failed")
)

// PoolError scopes a failure to a single pool so callers can log it and carry
// on with the rest of the batch.
type PoolError struct {
	PoolID string
	Err    error
}

func (e *PoolError) Error() string {
	return "pool " + e.PoolID + ": " + e.Err.Error()
}

func (e *PoolError) Unwrap() error { return e.Err }

// NewPoolError wraps err with the pool it belongs to. A nil err stays nil.
func NewPoolError(poolID string, err error) error {
	if err == nil {
		return nil
	}
	return &PoolError{PoolID: poolID, Err: err}
}
