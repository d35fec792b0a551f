package circuitbreaker

import (
	"sort"
	"sync"

	"github.com/strategyforge/gateway/internal/observability"
)

// Registry holds one circuit breaker per operation. Breakers for different
// operations never share state or locks.
type Registry struct {
	breakers sync.Map
	logger   observability.Logger
}

// NewRegistry creates a new circuit breaker registry.
func NewRegistry(logger observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Registry{logger: logger}
}

// Get returns a circuit breaker by name, or nil if not found.
func (r *Registry) Get(name string) *CircuitBreaker {
	value, ok := r.breakers.Load(name)
	if !ok {
		return nil
	}
	return value.(*CircuitBreaker)
}

// GetOrCreate returns the breaker for name, creating it with cfg if needed.
// An existing breaker keeps the configuration it was created with.
func (r *Registry) GetOrCreate(name string, cfg Config) *CircuitBreaker {
	if value, ok := r.breakers.Load(name); ok {
		return value.(*CircuitBreaker)
	}

	cb := New(name, cfg, WithLogger(r.logger))

	actual, loaded := r.breakers.LoadOrStore(name, cb)
	if loaded {
		return actual.(*CircuitBreaker)
	}

	r.logger.Debug("created circuit breaker",
		observability.String("name", name),
		observability.Int("failure_threshold", cb.config.FailureThreshold),
		observability.Duration("open_duration", cb.config.OpenDuration),
	)

	return cb
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.breakers.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Snapshots returns a snapshot of every breaker, sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	names := r.Names()
	snapshots := make([]Snapshot, 0, len(names))
	for _, name := range names {
		if cb := r.Get(name); cb != nil {
			snapshots = append(snapshots, cb.Snapshot())
		}
	}
	return snapshots
}
