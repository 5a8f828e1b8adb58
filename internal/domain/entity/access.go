package entity

import "time"

// AccessState tracks consecutive failed PIN attempts and an optional lockout
type AccessState struct {
	FailureCount int        `json:"failureCount"`
	LockoutUntil *time.Time `json:"lockoutUntil,omitempty"`
}

// LockedAt reports whether the state rejects attempts at the given instant
func (s AccessState) LockedAt(now time.Time) bool {
	return s.LockoutUntil != nil && now.Before(*s.LockoutUntil)
}

// AccessOutcome is the result kind of a PIN verification
type AccessOutcome string

const (
	AccessUnlocked  AccessOutcome = "unlocked"
	AccessRejected  AccessOutcome = "rejected"
	AccessLockedOut AccessOutcome = "locked_out"
)
