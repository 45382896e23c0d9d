package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced clock for deterministic cooldown
// tests.
type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time { return c.current }

func (c *testClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestTracker(t *testing.T, cooldown time.Duration, threshold int, ids ...string) (*HealthTracker, *testClock) {
	t.Helper()
	clock := &testClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tracker := NewHealthTracker(cooldown, threshold, ids)
	tracker.now = clock.now
	return tracker, clock
}

func TestHealthTracker_RateLimitWindow(t *testing.T) {
	tracker, clock := newTestTracker(t, 60*time.Second, 3, "primary")

	assert.False(t, tracker.IsRateLimited("primary"),
		"backend with no recorded failure should not be rate limited")

	tracker.MarkFailure("primary")
	assert.True(t, tracker.IsRateLimited("primary"),
		"backend should be rate limited immediately after a failure")

	clock.advance(59 * time.Second)
	assert.True(t, tracker.IsRateLimited("primary"),
		"backend should stay rate limited inside the cooldown window")

	clock.advance(1 * time.Second)
	assert.False(t, tracker.IsRateLimited("primary"),
		"backend should recover once the cooldown window elapses")
}

func TestHealthTracker_DisablementThreshold(t *testing.T) {
	tracker, _ := newTestTracker(t, 60*time.Second, 3, "primary")

	tracker.MarkFailure("primary")
	tracker.MarkFailure("primary")
	assert.False(t, tracker.IsDisabled("primary"),
		"two failures should not disable with a threshold of three")

	tracker.MarkFailure("primary")
	assert.True(t, tracker.IsDisabled("primary"),
		"third consecutive failure should disable the backend")
}

func TestHealthTracker_SuccessResetsStreakOnly(t *testing.T) {
	tracker, clock := newTestTracker(t, 60*time.Second, 3, "primary")

	tracker.MarkFailure("primary")
	tracker.MarkFailure("primary")
	tracker.MarkSuccess("primary")

	snap := tracker.Snapshot("primary")
	assert.Equal(t, 0, snap.ConsecutiveFailures,
		"success should reset the failure streak")
	assert.True(t, snap.RateLimited,
		"success during cooldown should not clear the window")

	clock.advance(61 * time.Second)
	assert.False(t, tracker.IsRateLimited("primary"),
		"cooldown should still expire on its own schedule")
}

func TestHealthTracker_FailureCauseIsUniform(t *testing.T) {
	// Two failures from different root causes produce identical state
	// transitions.
	trackerA, _ := newTestTracker(t, 60*time.Second, 3, "b")
	trackerB, _ := newTestTracker(t, 60*time.Second, 3, "b")

	trackerA.MarkFailure("b")
	trackerB.MarkFailure("b")

	assert.Equal(t, trackerA.Snapshot("b").ConsecutiveFailures,
		trackerB.Snapshot("b").ConsecutiveFailures)
	assert.Equal(t, trackerA.IsRateLimited("b"), trackerB.IsRateLimited("b"))
}

func TestHealthTracker_UnknownBackend(t *testing.T) {
	tracker, _ := newTestTracker(t, 60*time.Second, 3, "known")

	// Updates for unknown IDs must be no-ops, not panics.
	tracker.MarkFailure("unknown")
	tracker.MarkSuccess("unknown")

	assert.False(t, tracker.IsRateLimited("unknown"))
	assert.False(t, tracker.IsDisabled("unknown"))
	assert.Equal(t, HealthSnapshot{}, tracker.Snapshot("unknown"))
}

func TestHealthTracker_SnapshotIsConsistent(t *testing.T) {
	tracker, clock := newTestTracker(t, 60*time.Second, 2, "primary")

	tracker.MarkFailure("primary")
	tracker.MarkFailure("primary")

	snap := tracker.Snapshot("primary")
	require.Equal(t, 2, snap.ConsecutiveFailures)
	assert.True(t, snap.Disabled)
	assert.True(t, snap.RateLimited)
	assert.Equal(t, clock.current, snap.LastFailure)
}
