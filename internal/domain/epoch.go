package domain

// EpochPhase is the settlement phase of a pool. It is derived from ledger
// readings on every tick and never stored.
type EpochPhase int

const (
	PhaseOpen EpochPhase = iota
	PhaseCanBeClosed
	PhaseInSubmissionPeriod
	PhaseInChallengePeriod
	PhaseChallengePeriodEnded
)

func (p EpochPhase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseCanBeClosed:
		return "can_be_closed"
	case PhaseInSubmissionPeriod:
		return "in_submission_period"
	case PhaseInChallengePeriod:
		return "in_challenge_period"
	case PhaseChallengePeriodEnded:
		return "challenge_period_ended"
	default:
		return "unknown"
	}
}
