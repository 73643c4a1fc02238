package domain

import "cosmossdk.io/math"

// Action is what the orchestrator wants done for a pool in the current phase.
type Action int

const (
	ActionNone Action = iota
	ActionNotify
	ActionClose
	ActionSubmit
	ActionExecute
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionNotify:
		return "notify"
	case ActionClose:
		return "close_epoch"
	case ActionSubmit:
		return "submit_solution"
	case ActionExecute:
		return "execute_epoch"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating one pool in one phase.
type Decision struct {
	PoolID    string     `json:"poolId"`
	Phase     EpochPhase `json:"phase"`
	Action    Action     `json:"action"`
	Solution  *Solution  `json:"solution,omitempty"`
	Score     math.Int   `json:"score"`
	Fulfilled bool       `json:"fulfilled"`
	Reason    string     `json:"reason"`
}
