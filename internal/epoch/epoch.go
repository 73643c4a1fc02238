// Package epoch classifies a pool's settlement phase from coordinator
// readings. It keeps no state; every phase is rediscovered from the ledger.
package epoch

import (
	"time"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// Classify derives the phase of an epoch at time now.
func Classify(s domain.EpochSignals, now time.Time) domain.EpochPhase {
	ts := now.Unix()
	if ts < 0 {
		ts = 0
	}
	unix := uint64(ts)

	if !s.SubmissionPeriod {
		if unix >= s.LastEpochClosed+s.MinimumEpochTime {
			return domain.PhaseCanBeClosed
		}
		return domain.PhaseOpen
	}
	switch {
	case s.MinChallengePeriodEnd == 0:
		return domain.PhaseInSubmissionPeriod
	case unix >= s.MinChallengePeriodEnd:
		return domain.PhaseChallengePeriodEnded
	default:
		return domain.PhaseInChallengePeriod
	}
}

// ClosableAt is when an open epoch reaches its minimum duration.
func ClosableAt(s domain.EpochSignals) time.Time {
	return time.Unix(int64(s.LastEpochClosed+s.MinimumEpochTime), 0).UTC()
}

// ChallengeEndsAt is when the challenge window closes, or the zero time if no
// solution has been submitted yet.
func ChallengeEndsAt(s domain.EpochSignals) time.Time {
	if s.MinChallengePeriodEnd == 0 {
		return time.Time{}
	}
	return time.Unix(int64(s.MinChallengePeriodEnd), 0).UTC()
}
