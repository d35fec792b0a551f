package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/strategyforge/gateway/internal/backend"
	"github.com/strategyforge/gateway/internal/circuitbreaker"
	"github.com/strategyforge/gateway/internal/config"
	"github.com/strategyforge/gateway/internal/observability"
	"github.com/strategyforge/gateway/internal/retry"
)

// scriptedCaller replays outcomes in order, repeating the last one.
type scriptedCaller struct {
	mu       sync.Mutex
	outcomes []backend.Outcome
	calls    atomic.Int32
	block    chan struct{}
}

func (c *scriptedCaller) Call(ctx context.Context, _, _ string, _ []byte) backend.Outcome {
	n := int(c.calls.Add(1))
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return backend.TransportFailure(ctx.Err())
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > len(c.outcomes) {
		return c.outcomes[len(c.outcomes)-1]
	}
	return c.outcomes[n-1]
}

func fastRetry(maxRetries int) *retry.Policy {
	return retry.NewPolicy(retry.Config{
		MaxRetries:        maxRetries,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		Multiplier:        2,
		RetryableStatuses: retry.DefaultRetryableStatusCodes(),
	})
}

func newForwarder(t *testing.T, caller Caller, policies ...RoutePolicy) (*Forwarder, *circuitbreaker.Registry) {
	t.Helper()
	breakers := circuitbreaker.NewRegistry(nil)
	f, err := NewForwarder(caller, breakers, policies)
	require.NoError(t, err)
	return f, breakers
}

func transportFailure() backend.Outcome {
	return backend.TransportFailure(&backend.TransportError{
		Method: http.MethodPost,
		Path:   "/api/v1/strategies/generate",
		Reason: backend.ErrUnreachable,
	})
}

func generatePolicy(maxRetries, threshold int) RoutePolicy {
	return RoutePolicy{
		Operation: OperationGenerateStrategy,
		Retry:     fastRetry(maxRetries),
		Breaker:   circuitbreaker.Config{FailureThreshold: threshold, OpenDuration: time.Minute},
		Fallback:  Fallbacks()[OperationGenerateStrategy],
	}
}

var generateReq = Request{Method: http.MethodPost, Path: "/api/v1/strategies/generate", Body: []byte(`{}`)}

func TestForward_Success(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{outcomes: []backend.Outcome{
		backend.Success(http.StatusOK, []byte(`{"strategy":{"name":"sma"}}`)),
	}}
	f, _ := newForwarder(t, caller, generatePolicy(2, 5))

	resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"strategy":{"name":"sma"}}`, string(resp.Body))
	assert.Equal(t, SourceBackend, resp.Source)
	assert.Equal(t, int32(1), caller.calls.Load())
}

func TestForward_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	body := `{"detail":"No market data for symbol ZZZZ"}`
	caller := &scriptedCaller{outcomes: []backend.Outcome{
		backend.ApplicationError(http.StatusNotFound, []byte(body)),
	}}
	f, breakers := newForwarder(t, caller, generatePolicy(2, 1))

	resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, body, string(resp.Body))
	assert.Equal(t, int32(1), caller.calls.Load())
	assert.Equal(t, circuitbreaker.StateClosed, breakers.Get(OperationGenerateStrategy).State())
}

func TestForward_RetryableServerErrorExhaustsRetries(t *testing.T) {
	t.Parallel()

	body := `{"detail":"upstream overloaded"}`
	caller := &scriptedCaller{outcomes: []backend.Outcome{
		backend.ApplicationError(http.StatusServiceUnavailable, []byte(body)),
	}}
	f, _ := newForwarder(t, caller, generatePolicy(2, 10))

	resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

	require.NoError(t, err)
	assert.Equal(t, int32(3), caller.calls.Load())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, body, string(resp.Body))
	assert.Equal(t, SourceBackend, resp.Source)
}

func TestForward_RetryThenSuccess(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{outcomes: []backend.Outcome{
		transportFailure(),
		backend.ApplicationError(http.StatusBadGateway, []byte(`{"detail":"bad gateway"}`)),
		backend.Success(http.StatusCreated, []byte(`{"ok":true}`)),
	}}
	f, _ := newForwarder(t, caller, generatePolicy(2, 10))

	resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

	require.NoError(t, err)
	assert.Equal(t, int32(3), caller.calls.Load())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestForward_NonRetryableServerError(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{outcomes: []backend.Outcome{
		backend.ApplicationError(http.StatusNotImplemented, []byte(`{"detail":"nope"}`)),
	}}
	f, _ := newForwarder(t, caller, generatePolicy(2, 1))

	resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

	require.NoError(t, err)
	assert.Equal(t, int32(1), caller.calls.Load())
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestForward_TransportFailureFallsBack(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	caller := &scriptedCaller{outcomes: []backend.Outcome{transportFailure()}}
	breakers := circuitbreaker.NewRegistry(nil)
	f, err := NewForwarder(caller, breakers, []RoutePolicy{generatePolicy(2, 10)},
		WithForwarderLogger(observability.NewZapLogger(zap.New(core))))
	require.NoError(t, err)

	resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

	require.NoError(t, err)
	assert.Equal(t, int32(3), caller.calls.Load())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, SourceFallback, resp.Source)

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body, &env))
	assert.Equal(t, "Strategy generation temporarily unavailable", env.Error)
	assert.Equal(t, "backend unreachable", env.Detail)
	assert.Equal(t, 1, logs.FilterMessage("fallback invoked").Len())
}

func TestForward_BreakerTripsAndShortCircuits(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{outcomes: []backend.Outcome{transportFailure()}}
	f, breakers := newForwarder(t, caller, generatePolicy(0, 3))

	for i := 0; i < 3; i++ {
		_, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)
		require.NoError(t, err)
	}
	require.Equal(t, circuitbreaker.StateOpen, breakers.Get(OperationGenerateStrategy).State())

	resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

	require.NoError(t, err)
	assert.Equal(t, int32(3), caller.calls.Load())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "circuit open")
}

func TestForward_OpenBreakerTopStrategiesReturnsEmptyList(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{outcomes: []backend.Outcome{transportFailure()}}
	policies := PoliciesFromConfig(config.DefaultConfig().Resilience)
	f, breakers := newForwarder(t, caller, policies...)

	cb := breakers.Get(OperationTopStrategies)
	for cb.State() != circuitbreaker.StateOpen {
		done, err := cb.Allow()
		require.NoError(t, err)
		done(circuitbreaker.ResultFailure)
	}

	resp, err := f.Forward(context.Background(), OperationTopStrategies, Request{
		Method: http.MethodGet,
		Path:   "/api/v1/strategies/top?limit=10",
	})

	require.NoError(t, err)
	assert.Equal(t, int32(0), caller.calls.Load())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"top_strategies":[]}`, string(resp.Body))
	assert.Equal(t, SourceFallback, resp.Source)
}

func TestForward_ShortCircuitAfterApplicationErrorReturnsIt(t *testing.T) {
	t.Parallel()

	body := `{"detail":"temporarily overloaded"}`
	caller := &scriptedCaller{outcomes: []backend.Outcome{
		backend.ApplicationError(http.StatusServiceUnavailable, []byte(body)),
	}}
	f, breakers := newForwarder(t, caller, generatePolicy(2, 1))

	resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

	require.NoError(t, err)
	assert.Equal(t, int32(1), caller.calls.Load())
	assert.Equal(t, circuitbreaker.StateOpen, breakers.Get(OperationGenerateStrategy).State())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, body, string(resp.Body))
	assert.Equal(t, SourceBackend, resp.Source)
}

func TestForward_HalfOpenAdmitsSingleProbe(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{outcomes: []backend.Outcome{
		transportFailure(),
		backend.Success(http.StatusOK, []byte(`{"top_strategies":[{"id":1}]}`)),
	}}
	f, breakers := newForwarder(t, caller, RoutePolicy{
		Operation: OperationTopStrategies,
		Retry:     fastRetry(0),
		Breaker:   circuitbreaker.Config{FailureThreshold: 1, OpenDuration: 30 * time.Millisecond},
		Fallback:  Fallbacks()[OperationTopStrategies],
	})
	req := Request{Method: http.MethodGet, Path: "/api/v1/strategies/top?limit=5"}

	_, err := f.Forward(context.Background(), OperationTopStrategies, req)
	require.NoError(t, err)
	require.Equal(t, circuitbreaker.StateOpen, breakers.Get(OperationTopStrategies).State())

	time.Sleep(50 * time.Millisecond)
	caller.block = make(chan struct{})

	results := make(chan Response, 10)
	for i := 0; i < 10; i++ {
		go func() {
			resp, err := f.Forward(context.Background(), OperationTopStrategies, req)
			assert.NoError(t, err)
			results <- resp
		}()
	}

	// Nine callers are short-circuited while the probe is blocked.
	for i := 0; i < 9; i++ {
		select {
		case resp := <-results:
			assert.Equal(t, SourceFallback, resp.Source)
			assert.JSONEq(t, `{"top_strategies":[]}`, string(resp.Body))
		case <-time.After(5 * time.Second):
			t.Fatal("short-circuited callers did not return")
		}
	}
	close(caller.block)

	probe := <-results
	assert.Equal(t, SourceBackend, probe.Source)
	assert.Equal(t, int32(2), caller.calls.Load())
	assert.Equal(t, circuitbreaker.StateClosed, breakers.Get(OperationTopStrategies).State())
}

func TestForward_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{outcomes: []backend.Outcome{transportFailure()}}
	f, _ := newForwarder(t, caller, RoutePolicy{
		Operation: OperationRunBacktest,
		Retry: retry.NewPolicy(retry.Config{
			MaxRetries:     5,
			InitialBackoff: time.Minute,
			MaxBackoff:     time.Minute,
			Multiplier:     1,
		}),
		Breaker:  circuitbreaker.Config{FailureThreshold: 10, OpenDuration: time.Minute},
		Fallback: Fallbacks()[OperationRunBacktest],
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	resp, err := f.Forward(ctx, OperationRunBacktest, Request{Method: http.MethodPost, Path: "/api/v1/backtest/run"})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), caller.calls.Load())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "Backtest service temporarily unavailable")
}

func TestForward_CallerCancellationLeavesBreakerClosed(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{
		outcomes: []backend.Outcome{backend.Success(http.StatusOK, []byte(`{"strategy":{}}`))},
		block:    make(chan struct{}),
	}
	f, breakers := newForwarder(t, caller, generatePolicy(2, 2))

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		resp, err := f.Forward(ctx, OperationGenerateStrategy, generateReq)
		cancel()

		require.NoError(t, err)
		assert.Equal(t, SourceFallback, resp.Source)
	}

	cb := breakers.Get(OperationGenerateStrategy)
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
	assert.Equal(t, uint32(0), cb.Snapshot().ConsecutiveFailures)

	close(caller.block)
	resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

	require.NoError(t, err)
	assert.Equal(t, SourceBackend, resp.Source)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(6), caller.calls.Load())
}

func TestForward_NoBackoffOnceBreakerOpens(t *testing.T) {
	t.Parallel()

	slowRetry := retry.NewPolicy(retry.Config{
		MaxRetries:        3,
		InitialBackoff:    time.Minute,
		MaxBackoff:        time.Minute,
		Multiplier:        1,
		RetryableStatuses: retry.DefaultRetryableStatusCodes(),
	})
	body := `{"detail":"temporarily overloaded"}`

	tests := []struct {
		name       string
		outcome    backend.Outcome
		wantSource Source
		wantBody   string
	}{
		{
			name:       "application error is returned",
			outcome:    backend.ApplicationError(http.StatusServiceUnavailable, []byte(body)),
			wantSource: SourceBackend,
			wantBody:   body,
		},
		{
			name:       "transport failure falls back",
			outcome:    transportFailure(),
			wantSource: SourceFallback,
			wantBody:   "circuit open",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			caller := &scriptedCaller{outcomes: []backend.Outcome{tt.outcome}}
			f, breakers := newForwarder(t, caller, RoutePolicy{
				Operation: OperationGenerateStrategy,
				Retry:     slowRetry,
				Breaker:   circuitbreaker.Config{FailureThreshold: 1, OpenDuration: time.Minute},
				Fallback:  Fallbacks()[OperationGenerateStrategy],
			})

			start := time.Now()
			resp, err := f.Forward(context.Background(), OperationGenerateStrategy, generateReq)

			require.NoError(t, err)
			assert.Less(t, time.Since(start), 5*time.Second)
			assert.Equal(t, int32(1), caller.calls.Load())
			assert.Equal(t, circuitbreaker.StateOpen, breakers.Get(OperationGenerateStrategy).State())
			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
			assert.Equal(t, tt.wantSource, resp.Source)
			assert.Contains(t, string(resp.Body), tt.wantBody)
		})
	}
}

func TestForward_UnknownOperation(t *testing.T) {
	t.Parallel()

	f, _ := newForwarder(t, &scriptedCaller{outcomes: []backend.Outcome{backend.Success(200, nil)}})

	_, err := f.Forward(context.Background(), "nope", Request{})
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestNewForwarder_RejectsBadPolicies(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{}

	_, err := NewForwarder(caller, circuitbreaker.NewRegistry(nil), []RoutePolicy{{Operation: "x"}})
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	p := generatePolicy(0, 1)
	_, err = NewForwarder(caller, circuitbreaker.NewRegistry(nil), []RoutePolicy{p, p})
	assert.ErrorIs(t, err, ErrDuplicateOperation)
}

func TestPoliciesFromConfig(t *testing.T) {
	t.Parallel()

	policies := PoliciesFromConfig(config.DefaultConfig().Resilience)
	require.Len(t, policies, 4)

	byName := make(map[string]RoutePolicy)
	for _, p := range policies {
		byName[p.Operation] = p
	}
	assert.Equal(t, 0, byName[OperationTopStrategies].Retry.MaxRetries())
	assert.Equal(t, 2, byName[OperationGenerateStrategy].Retry.MaxRetries())
	assert.Equal(t, 5, byName[OperationRunBacktest].Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, byName[OperationBackendHealth].Breaker.OpenDuration)
}
