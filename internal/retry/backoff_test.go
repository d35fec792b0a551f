package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff_Next(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoff(100*time.Millisecond, time.Second, 2.0, 0)

	assert.Equal(t, 100*time.Millisecond, b.Next(0))
	assert.Equal(t, 200*time.Millisecond, b.Next(1))
	assert.Equal(t, 400*time.Millisecond, b.Next(2))
	assert.Equal(t, 800*time.Millisecond, b.Next(3))
	assert.Equal(t, time.Second, b.Next(4))
	assert.Equal(t, time.Second, b.Next(100))
	assert.Equal(t, 100*time.Millisecond, b.Next(-1))
}

func TestExponentialBackoff_JitterIsAdditive(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoff(100*time.Millisecond, 10*time.Second, 2.0, 0.5)

	for i := 0; i < 100; i++ {
		d := b.Next(1)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestExponentialBackoff_NormalizesArguments(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoff(time.Second, time.Millisecond, 0.5, -1)

	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, time.Second, b.Next(5))
}

func TestConstantBackoff(t *testing.T) {
	t.Parallel()

	b := NewConstantBackoff(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, b.Next(0))
	assert.Equal(t, 50*time.Millisecond, b.Next(9))
}

func TestConditions(t *testing.T) {
	t.Parallel()

	statuses := RetryOnStatusCodes(500, 503, 404, 700)
	assert.True(t, statuses.Contains(500))
	assert.False(t, statuses.Contains(404))
	assert.False(t, statuses.Contains(700))
	assert.False(t, statuses.ShouldRetry(errors.New("boom"), 500))

	transport := RetryOnTransportErrors()
	assert.True(t, transport.ShouldRetry(errors.New("reset"), 0))
	assert.False(t, transport.ShouldRetry(nil, 503))

	composite := RetryOnAny(statuses, transport)
	assert.True(t, composite.ShouldRetry(nil, 503))
	assert.True(t, composite.ShouldRetry(errors.New("reset"), 0))
	assert.False(t, composite.ShouldRetry(nil, 502))
}
