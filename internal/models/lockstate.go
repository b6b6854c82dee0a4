package models

import "time"

// LockState is derived from the current time and an unlock instant. It is
// never persisted.
type LockState struct {
	Locked    bool
	Remaining time.Duration
	UnlockAt  time.Time
}

// Locked builds a locked state with the given remaining duration.
func Locked(unlockAt time.Time, remaining time.Duration) LockState {
	return LockState{Locked: true, Remaining: remaining, UnlockAt: unlockAt}
}

// Unlocked builds an unlocked state.
func Unlocked(unlockAt time.Time) LockState {
	return LockState{UnlockAt: unlockAt}
}

// EvaluateLock compares now with unlockAt. Equality counts as unlocked.
func EvaluateLock(now, unlockAt time.Time) LockState {
	if now.Before(unlockAt) {
		return Locked(unlockAt, unlockAt.Sub(now))
	}
	return Unlocked(unlockAt)
}

func (s LockState) String() string {
	if s.Locked {
		return "locked"
	}
	return "unlocked"
}
