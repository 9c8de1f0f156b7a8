package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderMetrics_RecordSuccess(t *testing.T) {
	metrics := NewProviderMetrics()

	metrics.RecordSuccess(100)
	metrics.RecordSuccess(200)

	assert.Equal(t, int64(2), metrics.TotalRequests.Load())
	assert.Equal(t, int64(2), metrics.SuccessfulReqs.Load())
	assert.Equal(t, int64(0), metrics.FailedReqs.Load())
	assert.Equal(t, float64(1.0), metrics.SuccessRate())
	assert.Equal(t, int64(150), metrics.AvgLatencyMs())
}

func TestProviderMetrics_RecordFailure(t *testing.T) {
	metrics := NewProviderMetrics()

	metrics.RecordSuccess(100)
	assert.Equal(t, int32(1), metrics.RecordFailure())
	assert.Equal(t, int32(2), metrics.RecordFailure())

	assert.Equal(t, int64(3), metrics.TotalRequests.Load())
	assert.Equal(t, int64(1), metrics.SuccessfulReqs.Load())
	assert.Equal(t, int64(2), metrics.FailedReqs.Load())
	assert.InDelta(t, 0.333, metrics.SuccessRate(), 0.01)
	assert.Equal(t, int64(100), metrics.AvgLatencyMs())
}

func TestProviderMetrics_P95Latency(t *testing.T) {
	metrics := NewProviderMetrics()

	for i := int64(0); i < 100; i++ {
		metrics.RecordSuccess(i * 10)
	}

	p95 := metrics.P95LatencyMs()
	assert.GreaterOrEqual(t, p95, int64(900))
	assert.LessOrEqual(t, p95, int64(990))
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newCircuitBreaker(3, 10*time.Second)
	b.now = func() time.Time { return now }

	t.Run("closed allows", func(t *testing.T) {
		assert.True(t, b.Allow())
		assert.False(t, b.OnFailure(1))
		assert.False(t, b.OnFailure(2))
		assert.Equal(t, CircuitClosed, b.State())
	})

	t.Run("opens at threshold", func(t *testing.T) {
		assert.True(t, b.OnFailure(3))
		assert.Equal(t, CircuitOpen, b.State())
		assert.False(t, b.Allow())
	})

	t.Run("half open after cooldown admits one trial request", func(t *testing.T) {
		now = now.Add(11 * time.Second)
		assert.True(t, b.Allow())
		assert.Equal(t, CircuitHalfOpen, b.State())
		assert.False(t, b.Allow(), "only one trial request")
	})

	t.Run("failed trial reopens", func(t *testing.T) {
		assert.True(t, b.OnFailure(1))
		assert.Equal(t, CircuitOpen, b.State())
		assert.False(t, b.Allow())
	})

	t.Run("successful trial closes", func(t *testing.T) {
		now = now.Add(11 * time.Second)
		assert.True(t, b.Allow())
		b.OnSuccess()
		assert.Equal(t, CircuitClosed, b.State())
		assert.True(t, b.Allow())
	})
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	b := newCircuitBreaker(0, time.Second)
	for i := int32(1); i < 10; i++ {
		assert.False(t, b.OnFailure(i))
		assert.True(t, b.Allow())
	}
}
