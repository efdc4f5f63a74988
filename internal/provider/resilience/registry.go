package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// UpstreamHealth is the health of one upstream client as seen by the status endpoint.
type UpstreamHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// StateChangedAt is the last circuit transition, nil while never tripped.
	StateChangedAt *time.Time
}

// IsHealthy reports whether the circuit is closed.
func (h *UpstreamHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports whether the circuit is probing (half-open).
func (h *UpstreamHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports whether the circuit is open.
func (h *UpstreamHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks upstream clients (TDX, YouBike, OpenAI) and the outcome of
// their most recent calls.
type Registry struct {
	mu      sync.RWMutex
	clock   func() time.Time
	entries map[string]*registryEntry
}

type registryEntry struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clock:   time.Now,
		entries: make(map[string]*registryEntry),
	}
}

// Register adds or replaces a client under name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &registryEntry{client: client}
}

// Unregister removes a client.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// RecordSuccess stamps the last successful call for name. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		now := r.clock()
		e.lastSuccessAt = &now
	}
}

// RecordFailure stamps the last failed call and its error. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		now := r.clock()
		e.lastFailureAt = &now
		if err != nil {
			e.lastError = err.Error()
		}
	}
}

// Health returns the health of one client, or nil if it is not registered.
func (r *Registry) Health(name string) *UpstreamHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	return e.snapshot(name)
}

// All returns the health of every registered client, sorted by name.
func (r *Registry) All() []*UpstreamHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*UpstreamHealth, 0, len(r.entries))
	for name, e := range r.entries {
		all = append(all, e.snapshot(name))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (e *registryEntry) snapshot(name string) *UpstreamHealth {
	return &UpstreamHealth{
		Name:          name,
		CircuitState:  e.client.CircuitBreakerState(),
		Counts:        e.client.CircuitBreakerCounts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,

		StateChangedAt: e.client.StateChangedAt(),
	}
}
