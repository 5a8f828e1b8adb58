package gate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/garyjia/invoice-desk/internal/domain/entity"
	"github.com/garyjia/invoice-desk/internal/kvstore"
	"go.uber.org/zap"
)

// Keys of the gate's persisted and session-scoped state
const (
	AttemptsKey = "g-te-goyna-attempts"
	LockoutKey  = "g-te-goyna-lockout"
	SessionKey  = "g-te-goyna-auth"
)

// DefaultDelay is the pause before a submitted PIN is evaluated
const DefaultDelay = 800 * time.Millisecond

// Outcome is delivered by SubmitAsync once verification completes
type Outcome struct {
	Result Result
	Err    error
}

// Option configures a Gate
type Option func(*Gate)

// WithDelay overrides DefaultDelay
func WithDelay(d time.Duration) Option {
	return func(g *Gate) { g.delay = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate loads and persists AccessState around Verify and marks sessions
// unlocked. Overlapping submissions are not serialised.
type Gate struct {
	local  kvstore.Store
	delay  time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Gate persisting its counters in local
func New(local kvstore.Store, logger *zap.Logger, opts ...Option) *Gate {
	g := &Gate{
		local:  local,
		delay:  DefaultDelay,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load reads the persisted state. An expired lockout is cleared and the
// counter reset, and that is written back before returning.
func (g *Gate) Load() (entity.AccessState, error) {
	var state entity.AccessState

	raw, ok, err := g.local.Get(AttemptsKey)
	if err != nil {
		return state, fmt.Errorf("failed to read attempts: %w", err)
	}
	if ok {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 0 {
			g.logger.Warn("Ignoring malformed attempt counter", zap.String("value", raw))
			n = 0
		}
		state.FailureCount = n
	}

	raw, ok, err = g.local.Get(LockoutKey)
	if err != nil {
		return state, fmt.Errorf("failed to read lockout: %w", err)
	}
	if !ok {
		return state, nil
	}

	ms, convErr := strconv.ParseInt(raw, 10, 64)
	if convErr != nil {
		g.logger.Warn("Ignoring malformed lockout timestamp", zap.String("value", raw))
		return state, nil
	}
	until := time.UnixMilli(ms)
	state.LockoutUntil = &until

	if !g.now().Before(until) {
		g.logger.Info("Lockout expired, resetting attempts")
		state = entity.AccessState{}
		if err := g.Save(state); err != nil {
			return state, err
		}
	}
	return state, nil
}

// Save persists state; a nil lockout removes the lockout key
func (g *Gate) Save(state entity.AccessState) error {
	if err := g.local.Set(AttemptsKey, strconv.Itoa(state.FailureCount)); err != nil {
		return fmt.Errorf("failed to persist attempts: %w", err)
	}

	if state.LockoutUntil == nil {
		if err := g.local.Delete(LockoutKey); err != nil {
			return fmt.Errorf("failed to clear lockout: %w", err)
		}
		return nil
	}

	ms := strconv.FormatInt(state.LockoutUntil.UnixMilli(), 10)
	if err := g.local.Set(LockoutKey, ms); err != nil {
		return fmt.Errorf("failed to persist lockout: %w", err)
	}
	return nil
}

// Submit verifies code immediately, persists the new state and, on success,
// marks session as unlocked.
func (g *Gate) Submit(session kvstore.Store, code string) (Result, error) {
	state, err := g.Load()
	if err != nil {
		return Result{}, err
	}

	next, result := Verify(state, code, g.now())
	if result.Outcome != entity.AccessLockedOut || state.LockoutUntil == nil {
		if err := g.Save(next); err != nil {
			return Result{}, err
		}
	}

	switch result.Outcome {
	case entity.AccessUnlocked:
		if err := session.Set(SessionKey, "true"); err != nil {
			return Result{}, fmt.Errorf("failed to mark session: %w", err)
		}
		g.logger.Info("Access granted")
	case entity.AccessLockedOut:
		g.logger.Warn("Access locked out",
			zap.Int("failure_count", next.FailureCount),
			zap.Timep("lockout_until", next.LockoutUntil))
	default:
		g.logger.Info("Access denied", zap.Int("remaining", result.Remaining))
	}
	return result, nil
}

// SubmitAsync runs Submit after the configured delay and delivers the result
// on the returned channel. The verification itself cannot be cancelled;
// callers that stop waiting simply drop the result.
func (g *Gate) SubmitAsync(session kvstore.Store, code string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		if g.delay > 0 {
			time.Sleep(g.delay)
		}
		result, err := g.Submit(session, code)
		out <- Outcome{Result: result, Err: err}
	}()
	return out
}

// IsUnlocked reports whether session passed the gate
func (g *Gate) IsUnlocked(session kvstore.Store) bool {
	v, ok, err := session.Get(SessionKey)
	return err == nil && ok && v == "true"
}

// Status describes the gate for one session without submitting anything
type Status struct {
	Unlocked     bool       `json:"unlocked"`
	FailureCount int        `json:"failureCount"`
	Remaining    int        `json:"remaining"`
	LockoutUntil *time.Time `json:"lockoutUntil,omitempty"`
}

// Status reports the session flag together with the persisted counters
func (g *Gate) Status(session kvstore.Store) (Status, error) {
	state, err := g.Load()
	if err != nil {
		return Status{}, err
	}
	state = Refresh(state, g.now())

	remaining := MaxAttempts - state.FailureCount
	if remaining < 0 || state.LockedAt(g.now()) {
		remaining = 0
	}
	return Status{
		Unlocked:     g.IsUnlocked(session),
		FailureCount: state.FailureCount,
		Remaining:    remaining,
		LockoutUntil: state.LockoutUntil,
	}, nil
}
