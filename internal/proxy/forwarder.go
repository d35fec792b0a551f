package proxy

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/strategyforge/gateway/internal/backend"
	"github.com/strategyforge/gateway/internal/circuitbreaker"
	"github.com/strategyforge/gateway/internal/observability"
	"github.com/strategyforge/gateway/internal/retry"
)

// Caller performs one backend attempt.
type Caller interface {
	Call(ctx context.Context, method, path string, body []byte) backend.Outcome
}

// Request is the normalized request for one operation.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// RoutePolicy is the resilience policy of one operation.
type RoutePolicy struct {
	Operation string
	Retry     *retry.Policy
	Breaker   circuitbreaker.Config
	Fallback  FallbackFunc
}

// Forwarder runs operations against the backend. It is safe for
// concurrent use; the only shared mutable state is the per-operation
// breakers.
type Forwarder struct {
	caller   Caller
	breakers *circuitbreaker.Registry
	policies map[string]RoutePolicy
	logger   observability.Logger
	tracer   trace.Tracer
}

// ForwarderOption is a functional option for configuring the forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger for the forwarder.
func WithForwarderLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithTracer sets the tracer used for forward and attempt spans.
func WithTracer(tracer trace.Tracer) ForwarderOption {
	return func(f *Forwarder) {
		f.tracer = tracer
	}
}

// NewForwarder creates a forwarder and the breaker of every policy.
func NewForwarder(
	caller Caller,
	breakers *circuitbreaker.Registry,
	policies []RoutePolicy,
	opts ...ForwarderOption,
) (*Forwarder, error) {
	f := &Forwarder{
		caller:   caller,
		breakers: breakers,
		policies: make(map[string]RoutePolicy, len(policies)),
		logger:   observability.NopLogger(),
		tracer:   otel.Tracer(observability.TracerName),
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, p := range policies {
		if p.Operation == "" || p.Retry == nil || p.Fallback == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, p.Operation)
		}
		if _, exists := f.policies[p.Operation]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateOperation, p.Operation)
		}
		f.policies[p.Operation] = p
		f.breakers.GetOrCreate(p.Operation, p.Breaker)
	}
	return f, nil
}

// Operations returns the registered operation names.
func (f *Forwarder) Operations() []string {
	names := make([]string, 0, len(f.policies))
	for name := range f.policies {
		names = append(names, name)
	}
	return names
}

// Forward runs req as operation. The returned error is non-nil only for an
// unregistered operation; every backend failure is expressed as a Response.
func (f *Forwarder) Forward(ctx context.Context, operation string, req Request) (Response, error) {
	policy, ok := f.policies[operation]
	if !ok {
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
	}
	cb := f.breakers.GetOrCreate(operation, policy.Breaker)

	ctx, span := f.tracer.Start(ctx, "proxy.forward",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("gateway.operation", operation),
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	start := time.Now()
	resp, attempts, cause := f.run(ctx, operation, policy, cb, req)
	if cause != nil {
		fwdErr := &ForwardError{Operation: operation, Attempts: attempts, Cause: cause}
		span.RecordError(fwdErr)
		span.SetStatus(codes.Error, fwdErr.Error())

		f.logger.WithContext(ctx).Warn("fallback invoked",
			observability.String("operation", operation),
			observability.Int("attempts", attempts),
			observability.Error(fwdErr),
		)
		resp = policy.Fallback(cause)
		RecordFallback(operation, fallbackReason(cause))
	}

	span.SetAttributes(
		attribute.Int("gateway.attempts", attempts),
		attribute.String("gateway.response.source", resp.Source.String()),
		attribute.Int("http.response.status_code", resp.StatusCode),
	)
	RecordForward(operation, resp.Source, time.Since(start))
	return resp, nil
}

// run is the attempt loop. It returns either a backend response or, when a
// fallback is due, the cause of the terminal failure.
func (f *Forwarder) run(
	ctx context.Context,
	operation string,
	policy RoutePolicy,
	cb *circuitbreaker.CircuitBreaker,
	req Request,
) (Response, int, error) {
	logger := f.logger.WithContext(ctx)
	schedule := policy.Retry.NewSchedule()

	// lastAppError holds the previous attempt's answer when it was a
	// retryable application error; it is returned if no further attempt
	// gets to run.
	var lastAppError *backend.Outcome
	attempts := 0

	for {
		done, err := cb.Allow()
		if err != nil {
			logger.Debug("call short-circuited",
				observability.String("operation", operation),
				observability.String("state", cb.State().String()),
			)
			if lastAppError != nil {
				return FromOutcome(*lastAppError), attempts, nil
			}
			return Response{}, attempts, ErrCircuitOpen
		}

		if attempts > 0 {
			retry.RecordRetryAttempt(operation, attempts)
		}
		attempts++
		outcome := f.attempt(ctx, operation, attempts, req)

		var cause error
		switch outcome.Kind {
		case backend.OutcomeSuccess:
			done(circuitbreaker.ResultSuccess)
			return FromOutcome(outcome), attempts, nil

		case backend.OutcomeApplicationError:
			retryable := policy.Retry.ShouldRetry(nil, outcome.StatusCode)
			// The backend answered: only retryable statuses hurt its health.
			if retryable {
				done(circuitbreaker.ResultFailure)
			} else {
				done(circuitbreaker.ResultSuccess)
			}
			if !retryable || attempts > policy.Retry.MaxRetries() {
				if retryable {
					retry.RecordRetryExhausted(operation)
				}
				return FromOutcome(outcome), attempts, nil
			}
			lastAppError = &outcome

		default:
			lastAppError = nil
			cause = outcome.Err
			if ctx.Err() != nil {
				// The caller gave up; the backend's health is unknown.
				done(circuitbreaker.ResultIgnored)
				return Response{}, attempts, ctx.Err()
			}
			done(circuitbreaker.ResultFailure)
			if attempts > policy.Retry.MaxRetries() {
				if policy.Retry.MaxRetries() > 0 {
					retry.RecordRetryExhausted(operation)
				}
				return Response{}, attempts, cause
			}
		}

		if cb.State() == circuitbreaker.StateOpen {
			logger.Debug("circuit opened, retries abandoned",
				observability.String("operation", operation),
				observability.Int("attempt", attempts),
			)
			if lastAppError != nil {
				return FromOutcome(*lastAppError), attempts, nil
			}
			return Response{}, attempts, ErrCircuitOpen
		}

		wait := schedule.Next()
		logger.Debug("retrying backend call",
			observability.String("operation", operation),
			observability.Int("attempt", attempts),
			observability.Duration("backoff", wait),
		)
		retry.RecordBackoffDuration(operation, wait.Seconds())

		if err := retry.Wait(ctx, wait); err != nil {
			if lastAppError != nil {
				return FromOutcome(*lastAppError), attempts, nil
			}
			return Response{}, attempts, err
		}
	}
}

// attempt performs and traces one backend call.
func (f *Forwarder) attempt(ctx context.Context, operation string, n int, req Request) backend.Outcome {
	ctx, span := f.tracer.Start(ctx, "proxy.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gateway.operation", operation),
			attribute.Int("gateway.attempt", n),
		),
	)
	defer span.End()

	outcome := f.caller.Call(ctx, req.Method, req.Path, req.Body)

	span.SetAttributes(attribute.String("gateway.outcome", outcome.Kind.String()))
	if outcome.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", outcome.StatusCode))
	}
	if outcome.Kind == backend.OutcomeTransportFailure {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "transport failure")
	}
	return outcome
}
