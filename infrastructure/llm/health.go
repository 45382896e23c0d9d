package llm

import (
	"sync"
	"time"
)

// backendHealth is the mutable state for one backend. Records are shared
// across concurrently in-flight requests; the mutex keeps failure and
// success updates from losing writes when two requests fail against the
// same backend at once. Nothing here is persisted across restarts.
type backendHealth struct {
	mu                  sync.Mutex
	lastFailure         time.Time // zero value means no failure recorded
	consecutiveFailures int
}

// HealthSnapshot is a point-in-time copy of one backend's health state,
// taken under the record's lock. Candidate lists are ordered from
// snapshots so a concurrent update cannot reorder a list mid-build.
type HealthSnapshot struct {
	RateLimited         bool
	Disabled            bool
	ConsecutiveFailures int
	LastFailure         time.Time
}

// HealthTracker owns the health record of every registered backend. All
// operations are atomic per backend and safe for concurrent use. The
// cooldown window and disablement threshold come from the dispatch
// policy; they are uniform across backends.
type HealthTracker struct {
	cooldown  time.Duration
	threshold int
	now       func() time.Time

	records map[string]*backendHealth
}

// NewHealthTracker creates a tracker with one record per backend ID.
func NewHealthTracker(cooldown time.Duration, threshold int, ids []string) *HealthTracker {
	records := make(map[string]*backendHealth, len(ids))
	for _, id := range ids {
		records[id] = &backendHealth{}
	}
	return &HealthTracker{
		cooldown:  cooldown,
		threshold: threshold,
		now:       time.Now,
		records:   records,
	}
}

// IsRateLimited reports whether the backend is inside its cooldown
// window: a failure was marked and less than the cooldown window has
// elapsed since.
func (t *HealthTracker) IsRateLimited(id string) bool {
	rec, ok := t.records[id]
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return t.rateLimitedLocked(rec)
}

// IsDisabled reports whether the backend's failure streak has reached the
// disablement threshold.
func (t *HealthTracker) IsDisabled(id string) bool {
	rec, ok := t.records[id]
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.consecutiveFailures >= t.threshold
}

// MarkFailure records the current time as the backend's last failure and
// increments its streak. It applies uniformly whether the root cause was
// a rate-limit signal, a timeout, or a malformed response.
func (t *HealthTracker) MarkFailure(id string) {
	rec, ok := t.records[id]
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lastFailure = t.now()
	rec.consecutiveFailures++
}

// MarkSuccess resets the backend's failure streak. It does not clear an
// in-progress cooldown window: a success during cooldown resets the
// streak but the backend stays rate limited until the window naturally
// elapses, preventing oscillation on a single lucky call.
func (t *HealthTracker) MarkSuccess(id string) {
	rec, ok := t.records[id]
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.consecutiveFailures = 0
}

// Snapshot returns a consistent copy of the backend's health state.
func (t *HealthTracker) Snapshot(id string) HealthSnapshot {
	rec, ok := t.records[id]
	if !ok {
		return HealthSnapshot{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return HealthSnapshot{
		RateLimited:         t.rateLimitedLocked(rec),
		Disabled:            rec.consecutiveFailures >= t.threshold,
		ConsecutiveFailures: rec.consecutiveFailures,
		LastFailure:         rec.lastFailure,
	}
}

func (t *HealthTracker) rateLimitedLocked(rec *backendHealth) bool {
	if rec.lastFailure.IsZero() {
		return false
	}
	return t.now().Sub(rec.lastFailure) < t.cooldown
}
