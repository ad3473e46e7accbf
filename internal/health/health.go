// Package health reports whether the decision service can actually serve
// traffic: an active threshold and, when Postgres is configured, a reachable
// database.
package health

import (
	"context"
	"errors"
	"sync"
)

// ErrNoThreshold is reported while no decision threshold is active. The
// predict endpoints answer 503 in that state, so the service counts as
// degraded even though the process is up.
var ErrNoThreshold = errors.New("no decision threshold configured")

// Checker probes one subsystem. A nil return means healthy.
type Checker func(ctx context.Context) error

// Status is the outcome of one subsystem probe.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// ThresholdCheck reports healthy while a decision threshold is active.
func ThresholdCheck(active func() bool) Checker {
	return func(context.Context) error {
		if !active() {
			return ErrNoThreshold
		}
		return nil
	}
}

// DatabaseCheck pings the threshold/audit database.
func DatabaseCheck(ping func(ctx context.Context) error) Checker {
	return func(ctx context.Context) error {
		return ping(ctx)
	}
}

// Registry runs named checkers on demand.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]Checker
}

// NewRegistry creates an empty registry. With no checkers registered it
// reports healthy.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Checker)}
}

// Register adds a checker under name, replacing any previous checker with
// the same name.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	if _, seen := r.checks[name]; !seen {
		r.names = append(r.names, name)
	}
	r.checks[name] = check
	r.mu.Unlock()
}

// CheckAll probes every subsystem in registration order. The aggregate is
// healthy only when every probe passes.
func (r *Registry) CheckAll(ctx context.Context) (bool, []Status) {
	r.mu.RLock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	checks := make(map[string]Checker, len(r.checks))
	for name, check := range r.checks {
		checks[name] = check
	}
	r.mu.RUnlock()

	healthy := true
	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		st := Status{Name: name, Healthy: true}
		if err := checks[name](ctx); err != nil {
			st.Healthy = false
			st.Detail = err.Error()
			healthy = false
		}
		statuses = append(statuses, st)
	}
	return healthy, statuses
}
