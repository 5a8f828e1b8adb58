// Package gate guards the invoice desk behind a fixed PIN with a timed
// lockout after repeated failures.
package gate

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/garyjia/invoice-desk/internal/domain/entity"
)

const (
	// MaxAttempts consecutive failures trigger a lockout
	MaxAttempts = 5

	// LockoutDuration is how long every attempt is rejected after MaxAttempts failures
	LockoutDuration = 30 * time.Minute

	secretCode = "1337"
)

const (
	msgUnlocked  = "Authentication successful"
	msgLockedOut = "Too many failed attempts. Account is locked for 30 minutes."
)

// Result describes the outcome of one verification
type Result struct {
	Outcome      entity.AccessOutcome `json:"outcome"`
	Remaining    int                  `json:"remaining"`
	LockoutUntil *time.Time           `json:"lockoutUntil,omitempty"`
	Message      string               `json:"message"`
}

// Unlocked reports whether the attempt succeeded
func (r Result) Unlocked() bool {
	return r.Outcome == entity.AccessUnlocked
}

// Refresh clears a lockout whose expiry has passed, resetting the counter.
// A counter already at the limit without an expiry is given one.
func Refresh(state entity.AccessState, now time.Time) entity.AccessState {
	if state.LockoutUntil != nil {
		if !now.Before(*state.LockoutUntil) {
			return entity.AccessState{}
		}
		return state
	}
	if state.FailureCount >= MaxAttempts {
		until := now.Add(LockoutDuration)
		state.LockoutUntil = &until
	}
	return state
}

// Verify checks code against the secret and returns the next state. While
// locked out every attempt is rejected, correct or not, and the state is
// left as it was.
func Verify(state entity.AccessState, code string, now time.Time) (entity.AccessState, Result) {
	state = Refresh(state, now)
	if state.LockedAt(now) {
		return state, lockedResult(state)
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(secretCode)) == 1 {
		return entity.AccessState{}, Result{
			Outcome:   entity.AccessUnlocked,
			Remaining: MaxAttempts,
			Message:   msgUnlocked,
		}
	}

	state.FailureCount++
	if state.FailureCount >= MaxAttempts {
		until := now.Add(LockoutDuration)
		state.LockoutUntil = &until
		return state, lockedResult(state)
	}

	remaining := MaxAttempts - state.FailureCount
	return state, Result{
		Outcome:   entity.AccessRejected,
		Remaining: remaining,
		Message:   rejectedMessage(remaining),
	}
}

func lockedResult(state entity.AccessState) Result {
	until := *state.LockoutUntil
	return Result{
		Outcome:      entity.AccessLockedOut,
		Remaining:    0,
		LockoutUntil: &until,
		Message:      msgLockedOut,
	}
}

func rejectedMessage(remaining int) string {
	noun := "attempts"
	if remaining == 1 {
		noun = "attempt"
	}
	return fmt.Sprintf("Incorrect PIN. %d %s remaining.", remaining, noun)
}
