package pool

import (
	"sort"
	"sync"
	"time"
)

// ActiveRun describes one crawl currently executing in the pool.
type ActiveRun struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	StartedAt time.Time `json:"start_time"`
}

// Registry tracks active crawl runs for observability. It is owned by the
// Pool; runs are deregistered unconditionally when they end, whatever the
// outcome.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]ActiveRun
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]ActiveRun)}
}

func (r *Registry) register(run ActiveRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
}

func (r *Registry) deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
}

// Len returns the number of active runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}

// Snapshot returns a copy of the active runs ordered by start time.
func (r *Registry) Snapshot() []ActiveRun {
	r.mu.RLock()
	out := make([]ActiveRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
