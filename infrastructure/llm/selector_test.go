package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSelectorRegistry builds a registry of fake backends with a
// deterministic clock for candidate ordering tests.
func newSelectorRegistry(t *testing.T, ids ...string) (*Registry, *testClock) {
	t.Helper()

	RegisterTransportFactory("static", func(cfg BackendConfig) (Transport, error) {
		return &staticTransport{model: cfg.Model}, nil
	})

	backends := make([]BackendConfig, len(ids))
	for i, id := range ids {
		backends[i] = BackendConfig{
			ID:       id,
			Provider: "static",
			APIKey:   "test-key",
			Model:    "test-model",
			Priority: i,
		}
	}

	registry, err := NewRegistry(RegistryConfig{Backends: backends})
	require.NoError(t, err, "registry construction should succeed")

	clock := &testClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	registry.health.now = clock.now
	return registry, clock
}

// staticTransport is a minimal transport used where the call path is not
// exercised.
type staticTransport struct {
	model string
}

func (s *staticTransport) Generate(_ context.Context, _ string, _ RequestOptions) (string, error) {
	return "", nil
}

func (s *staticTransport) Model() string { return s.model }

func candidateIDs(candidates []Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Config.ID
	}
	return ids
}

func TestSelectCandidates_AllHealthyKeepsPriorityOrder(t *testing.T) {
	registry, _ := newSelectorRegistry(t, "primary", "secondary", "tertiary")

	got := candidateIDs(registry.SelectCandidates())
	assert.Equal(t, []string{"primary", "secondary", "tertiary"}, got)
}

func TestSelectCandidates_UnhealthyPrimaryIsSkipped(t *testing.T) {
	registry, _ := newSelectorRegistry(t, "primary", "secondary", "tertiary")

	registry.health.MarkFailure("primary")

	got := candidateIDs(registry.SelectCandidates())
	assert.Equal(t, []string{"secondary", "tertiary"}, got,
		"rate-limited primary should be excluded while healthy backends exist")
}

func TestSelectCandidates_RecoveredPrimaryRegainsLead(t *testing.T) {
	registry, clock := newSelectorRegistry(t, "primary", "secondary")

	registry.health.MarkFailure("primary")
	clock.advance(61 * time.Second)

	got := candidateIDs(registry.SelectCandidates())
	assert.Equal(t, []string{"primary", "secondary"}, got,
		"primary should resume leading once its cooldown expires")
}

func TestSelectCandidates_GlobalOutageOrdersByDistress(t *testing.T) {
	registry, clock := newSelectorRegistry(t, "a", "b", "c")

	// a: 3 failures, most recent. b: 1 failure, oldest. c: 2 failures.
	registry.health.MarkFailure("b")
	clock.advance(5 * time.Second)
	registry.health.MarkFailure("c")
	registry.health.MarkFailure("c")
	clock.advance(5 * time.Second)
	registry.health.MarkFailure("a")
	registry.health.MarkFailure("a")
	registry.health.MarkFailure("a")

	got := candidateIDs(registry.SelectCandidates())
	require.Len(t, got, 3, "global outage should return every backend")
	assert.Equal(t, []string{"b", "c", "a"}, got,
		"least-distressed backends should be tried first")
}

func TestSelectCandidates_GlobalOutageTiesKeepRegistrationOrder(t *testing.T) {
	registry, _ := newSelectorRegistry(t, "a", "b")

	// Identical failure state for both.
	registry.health.MarkFailure("a")
	registry.health.MarkFailure("b")

	got := candidateIDs(registry.SelectCandidates())
	assert.Equal(t, []string{"a", "b"}, got,
		"ties in the composite key should preserve registration order")
}
