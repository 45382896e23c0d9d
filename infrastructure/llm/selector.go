package llm

import "sort"

// Candidate pairs a backend configuration with the health snapshot used
// to order it. Candidate lists are computed fresh per request and never
// cached, since health changes between requests.
type Candidate struct {
	Config BackendConfig
	Health HealthSnapshot
}

// SelectCandidates computes the ordered list of backends to try for one
// request.
//
// The healthy path filters out backends that are rate limited or
// disabled, preserving static priority order. When the filtered set is
// empty (a global outage), the entire registry is returned instead,
// ordered by the composite key (rate-limited ascending, consecutive
// failures ascending, last failure ascending) so the backends that
// failed longest ago or least severely are tried first rather than
// hard-failing the request. Ties keep registration order.
func (r *Registry) SelectCandidates() []Candidate {
	all := make([]Candidate, 0, len(r.backends))
	healthy := make([]Candidate, 0, len(r.backends))

	for _, bc := range r.backends {
		c := Candidate{Config: bc, Health: r.health.Snapshot(bc.ID)}
		all = append(all, c)
		if !c.Health.RateLimited && !c.Health.Disabled {
			healthy = append(healthy, c)
		}
	}

	if len(healthy) > 0 {
		return healthy
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].Health, all[j].Health
		if a.RateLimited != b.RateLimited {
			return !a.RateLimited
		}
		if a.ConsecutiveFailures != b.ConsecutiveFailures {
			return a.ConsecutiveFailures < b.ConsecutiveFailures
		}
		return a.LastFailure.Before(b.LastFailure)
	})

	return all
}
