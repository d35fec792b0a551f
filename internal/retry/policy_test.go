package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(DefaultConfig())
	transportErr := errors.New("connection refused")

	tests := []struct {
		name   string
		err    error
		status int
		want   bool
	}{
		{name: "transport failure", err: transportErr, want: true},
		{name: "500", status: http.StatusInternalServerError, want: true},
		{name: "502", status: http.StatusBadGateway, want: true},
		{name: "503", status: http.StatusServiceUnavailable, want: true},
		{name: "504", status: http.StatusGatewayTimeout, want: true},
		{name: "501 not configured", status: http.StatusNotImplemented, want: false},
		{name: "400", status: http.StatusBadRequest, want: false},
		{name: "404", status: http.StatusNotFound, want: false},
		{name: "422", status: http.StatusUnprocessableEntity, want: false},
		{name: "429", status: http.StatusTooManyRequests, want: false},
		{name: "200", status: http.StatusOK, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, policy.ShouldRetry(tt.err, tt.status))
		})
	}
}

func TestPolicy_ClientErrorsNeverRetried(t *testing.T) {
	t.Parallel()

	// 4xx codes in the configured list are dropped.
	policy := NewPolicy(Config{RetryableStatuses: []int{404, 429, 503}})

	assert.False(t, policy.ShouldRetry(nil, http.StatusNotFound))
	assert.False(t, policy.ShouldRetry(nil, http.StatusTooManyRequests))
	assert.True(t, policy.ShouldRetry(nil, http.StatusServiceUnavailable))
	assert.False(t, policy.IsRetryableStatus(http.StatusNotFound))
}

func TestPolicy_MaxRetries(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, NewPolicy(DefaultConfig()).MaxRetries())
	assert.Equal(t, 0, NewPolicy(Config{MaxRetries: -3}).MaxRetries())
}

func TestSchedule_NonDecreasing(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(Config{
		MaxRetries:     10,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		Multiplier:     2,
		Jitter:         0.9,
	})

	for run := 0; run < 50; run++ {
		s := policy.NewSchedule()
		prev := time.Duration(0)
		for i := 0; i < 10; i++ {
			d := s.Next()
			assert.GreaterOrEqual(t, d, prev)
			assert.LessOrEqual(t, d, 200*time.Millisecond)
			prev = d
		}
		assert.Equal(t, 10, s.Attempt())
	}
}

type shrinkingBackoff struct{}

func (shrinkingBackoff) Next(attempt int) time.Duration {
	return time.Second / time.Duration(attempt+1)
}

func TestSchedule_ClampsShrinkingBackoff(t *testing.T) {
	t.Parallel()

	s := NewSchedule(shrinkingBackoff{})
	assert.Equal(t, time.Second, s.Next())
	assert.Equal(t, time.Second, s.Next())
	assert.Equal(t, time.Second, s.Next())
}

func TestWait(t *testing.T) {
	t.Parallel()

	t.Run("elapses", func(t *testing.T) {
		t.Parallel()
		start := time.Now()
		require.NoError(t, Wait(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		start := time.Now()
		err := Wait(ctx, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("zero returns context state", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, Wait(ctx, 0))
		cancel()
		assert.ErrorIs(t, Wait(ctx, 0), context.Canceled)
	})
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	RecordRetryAttempt("metrics-op", 12)
	RecordRetryExhausted("metrics-op")
	RecordBackoffDuration("metrics-op", 0.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(RetryAttemptsTotal.WithLabelValues("metrics-op", "12")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RetryExhaustedTotal.WithLabelValues("metrics-op")))
}
