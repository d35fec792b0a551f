package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/strategyforge/gateway/internal/observability"
)

var cbTracer = otel.Tracer("strategyforge-gateway/circuitbreaker")

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and requests are allowed.
	StateClosed State = iota

	// StateOpen indicates the circuit is open and requests are rejected.
	StateOpen

	// StateHalfOpen indicates a single probe is being admitted.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when the half-open probe is already in flight.
var ErrTooManyRequests = errors.New("circuit breaker probe already in flight")

// IsShortCircuit reports whether err means the breaker refused the call.
func IsShortCircuit(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// StateChangeFunc is notified after every transition.
type StateChangeFunc func(name string, from, to State)

// CircuitBreaker guards one named operation.
type CircuitBreaker struct {
	name   string
	config Config
	cb     *gobreaker.TwoStepCircuitBreaker
	logger observability.Logger

	onStateChange StateChangeFunc

	mu             sync.Mutex
	lastTransition time.Time
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithLogger sets the logger for the circuit breaker.
func WithLogger(logger observability.Logger) Option {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// WithStateChange registers a transition callback. The callback runs while
// the breaker holds its lock and must not call back into the breaker.
func WithStateChange(fn StateChangeFunc) Option {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

// New creates a circuit breaker for the named operation.
func New(name string, cfg Config, opts ...Option) *CircuitBreaker {
	cfg = cfg.normalize()

	cb := &CircuitBreaker{
		name:           name,
		config:         cfg,
		logger:         observability.NopLogger(),
		lastTransition: time.Now(),
	}
	for _, opt := range opts {
		opt(cb)
	}

	threshold := safeIntToUint32(cfg.FailureThreshold)

	cb.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name: name,
		// One probe in half-open; its success closes the circuit.
		MaxRequests: 1,
		// Zero keeps consecutive failure counts until a success resets them.
		Interval: 0,
		Timeout:  cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cb.handleStateChange(fromGobreaker(from), fromGobreaker(to))
		},
	})

	RecordState(name, StateClosed)
	return cb
}

func (cb *CircuitBreaker) handleStateChange(from, to State) {
	cb.mu.Lock()
	cb.lastTransition = time.Now()
	cb.mu.Unlock()

	RecordStateChange(cb.name, from, to)

	cb.logger.Info("circuit breaker state changed",
		observability.String("name", cb.name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)

	_, span := cbTracer.Start(context.Background(),
		"circuitbreaker.state_change",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.AddEvent("state_change", trace.WithAttributes(
		attribute.String("circuitbreaker.name", cb.name),
		attribute.String("circuitbreaker.from", from.String()),
		attribute.String("circuitbreaker.to", to.String()),
	))
	span.End()

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// Result settles an admitted call.
type Result int

const (
	// ResultSuccess reports a healthy backend answer.
	ResultSuccess Result = iota

	// ResultFailure reports a backend failure.
	ResultFailure

	// ResultIgnored settles a call whose outcome says nothing about the
	// backend, such as one abandoned by its caller. It leaves the counts of a
	// closed circuit untouched. An ignored half-open probe reopens the
	// circuit, since gobreaker admits no other probe until this one settles.
	ResultIgnored
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Allow asks whether a call may proceed. On success the caller must invoke
// done exactly once with the result of the call. A refused call returns
// ErrCircuitOpen, or ErrTooManyRequests while the half-open probe is in flight.
func (cb *CircuitBreaker) Allow() (done func(result Result), err error) {
	report, err := cb.cb.Allow()
	if err != nil {
		RecordRequest(cb.name, false)
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrTooManyRequests
		}
		return nil, ErrCircuitOpen
	}

	RecordRequest(cb.name, true)
	probe := cb.cb.State() == gobreaker.StateHalfOpen

	var once sync.Once
	return func(result Result) {
		once.Do(func() {
			switch result {
			case ResultSuccess:
				RecordSuccess(cb.name)
				report(true)
			case ResultIgnored:
				RecordIgnored(cb.name)
				if probe {
					cb.logger.Debug("half-open probe abandoned",
						observability.String("name", cb.name),
					)
					report(false)
				}
			default:
				RecordFailure(cb.name)
				report(false)
			}
		})
	}, nil
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state. Reading the state may itself move an
// expired open circuit to half-open.
func (cb *CircuitBreaker) State() State {
	return fromGobreaker(cb.cb.State())
}

// Config returns the effective configuration.
func (cb *CircuitBreaker) Config() Config {
	return cb.config
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	Requests            uint32    `json:"requests"`
	TotalFailures       uint32    `json:"total_failures"`
	TotalSuccesses      uint32    `json:"total_successes"`
	FailureThreshold    int       `json:"failure_threshold"`
	OpenDuration        string    `json:"open_duration"`
	LastTransition      time.Time `json:"last_transition"`
}

// Snapshot returns the breaker's current state and counters. Counters are
// reset by gobreaker on every transition.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	state := cb.State()
	counts := cb.cb.Counts()

	cb.mu.Lock()
	last := cb.lastTransition
	cb.mu.Unlock()

	return Snapshot{
		Name:                cb.name,
		State:               state.String(),
		ConsecutiveFailures: counts.ConsecutiveFailures,
		Requests:            counts.Requests,
		TotalFailures:       counts.TotalFailures,
		TotalSuccesses:      counts.TotalSuccesses,
		FailureThreshold:    cb.config.FailureThreshold,
		OpenDuration:        cb.config.OpenDuration.String(),
		LastTransition:      last,
	}
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
