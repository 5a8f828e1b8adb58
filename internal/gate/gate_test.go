package gate

import (
	"strconv"
	"testing"
	"time"

	"github.com/garyjia/invoice-desk/internal/domain/entity"
	"github.com/garyjia/invoice-desk/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newGate(t *testing.T) (*Gate, *kvstore.MemoryStore, *testClock) {
	t.Helper()
	local := kvstore.NewMemoryStore()
	clock := &testClock{now: t0}
	g := New(local, zap.NewNop(), WithClock(clock.Now), WithDelay(0))
	return g, local, clock
}

func TestGate_Submit(t *testing.T) {
	t.Run("success unlocks session and resets counter", func(t *testing.T) {
		g, local, _ := newGate(t)
		session := kvstore.NewMemoryStore()
		require.NoError(t, local.Set(AttemptsKey, "2"))

		result, err := g.Submit(session, "1337")
		require.NoError(t, err)
		assert.True(t, result.Unlocked())
		assert.True(t, g.IsUnlocked(session))

		v, _, _ := local.Get(AttemptsKey)
		assert.Equal(t, "0", v)
	})

	t.Run("failures are persisted", func(t *testing.T) {
		g, local, _ := newGate(t)
		session := kvstore.NewMemoryStore()

		for i := 0; i < 4; i++ {
			result, err := g.Submit(session, "0000")
			require.NoError(t, err)
			assert.Equal(t, entity.AccessRejected, result.Outcome)
		}

		v, _, _ := local.Get(AttemptsKey)
		assert.Equal(t, "4", v)
		_, locked, _ := local.Get(LockoutKey)
		assert.False(t, locked)
		assert.False(t, g.IsUnlocked(session))
	})

	t.Run("five wrong codes then the right one", func(t *testing.T) {
		g, local, clock := newGate(t)
		session := kvstore.NewMemoryStore()

		var result Result
		var err error
		for i := 0; i < 5; i++ {
			result, err = g.Submit(session, "0000")
			require.NoError(t, err)
		}
		assert.Equal(t, entity.AccessLockedOut, result.Outcome)
		assert.Equal(t, "Too many failed attempts. Account is locked for 30 minutes.", result.Message)

		raw, ok, _ := local.Get(LockoutKey)
		require.True(t, ok)
		assert.Equal(t, strconv.FormatInt(t0.Add(30*time.Minute).UnixMilli(), 10), raw)

		clock.now = t0.Add(time.Minute)
		result, err = g.Submit(session, "1337")
		require.NoError(t, err)
		assert.Equal(t, entity.AccessLockedOut, result.Outcome)
		assert.False(t, g.IsUnlocked(session))

		clock.now = t0.Add(31 * time.Minute)
		result, err = g.Submit(session, "1337")
		require.NoError(t, err)
		assert.True(t, result.Unlocked())
		assert.True(t, g.IsUnlocked(session))
	})
}

func TestGate_Load(t *testing.T) {
	t.Run("expired lockout is cleared on load", func(t *testing.T) {
		g, local, _ := newGate(t)
		require.NoError(t, local.Set(AttemptsKey, "5"))
		require.NoError(t, local.Set(LockoutKey, strconv.FormatInt(t0.Add(-time.Second).UnixMilli(), 10)))

		state, err := g.Load()
		require.NoError(t, err)
		assert.Equal(t, entity.AccessState{}, state)

		v, _, _ := local.Get(AttemptsKey)
		assert.Equal(t, "0", v)
		_, ok, _ := local.Get(LockoutKey)
		assert.False(t, ok)
	})

	t.Run("active lockout is kept", func(t *testing.T) {
		g, local, _ := newGate(t)
		until := t0.Add(5 * time.Minute)
		require.NoError(t, local.Set(AttemptsKey, "5"))
		require.NoError(t, local.Set(LockoutKey, strconv.FormatInt(until.UnixMilli(), 10)))

		state, err := g.Load()
		require.NoError(t, err)
		assert.Equal(t, 5, state.FailureCount)
		require.NotNil(t, state.LockoutUntil)
		assert.True(t, state.LockedAt(t0))
	})

	t.Run("malformed values are ignored", func(t *testing.T) {
		g, local, _ := newGate(t)
		require.NoError(t, local.Set(AttemptsKey, "many"))
		require.NoError(t, local.Set(LockoutKey, "soon"))

		state, err := g.Load()
		require.NoError(t, err)
		assert.Equal(t, entity.AccessState{}, state)
	})
}

func TestGate_SubmitAsync(t *testing.T) {
	local := kvstore.NewMemoryStore()
	g := New(local, zap.NewNop(), WithDelay(20*time.Millisecond))
	session := kvstore.NewMemoryStore()

	start := time.Now()
	select {
	case outcome := <-g.SubmitAsync(session, "1337"):
		require.NoError(t, outcome.Err)
		assert.True(t, outcome.Result.Unlocked())
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("verification did not complete")
	}
}

func TestGate_Status(t *testing.T) {
	g, _, _ := newGate(t)
	session := kvstore.NewMemoryStore()

	_, err := g.Submit(session, "0000")
	require.NoError(t, err)

	status, err := g.Status(session)
	require.NoError(t, err)
	assert.False(t, status.Unlocked)
	assert.Equal(t, 1, status.FailureCount)
	assert.Equal(t, 4, status.Remaining)
}
