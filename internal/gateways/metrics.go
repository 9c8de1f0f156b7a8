package gateway

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type ProviderMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64

	mu             sync.RWMutex
	latencyHistory []int64
	maxHistorySize int
}

func NewProviderMetrics() *ProviderMetrics {
	return &ProviderMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *ProviderMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

// RecordFailure returns the new consecutive failure count.
func (m *ProviderMetrics) RecordFailure() int32 {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
	return m.ConsecutiveFails.Add(1)
}

func (m *ProviderMetrics) AvgLatencyMs() int64 {
	ok := m.SuccessfulReqs.Load()
	if ok == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / ok
}

func (m *ProviderMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *ProviderMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p95Index := int(float64(len(sorted)) * 0.95)
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	return sorted[p95Index]
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// circuitBreaker opens after threshold consecutive failures and lets a single
// trial request through once the cooldown has passed.
type circuitBreaker struct {
	threshold int32
	cooldown  time.Duration
	now       func() time.Time

	state     atomic.Int32
	openUntil atomic.Int64
	probing   atomic.Bool
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: int32(threshold),
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (b *circuitBreaker) State() CircuitState {
	return CircuitState(b.state.Load())
}

// Cooling reports whether the circuit is open and still inside its cooldown.
func (b *circuitBreaker) Cooling() bool {
	return b.State() == CircuitOpen && b.now().UnixNano() < b.openUntil.Load()
}

// Allow reports whether a request may be sent now.
func (b *circuitBreaker) Allow() bool {
	if b.threshold <= 0 {
		return true
	}
	switch b.State() {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if b.now().UnixNano() < b.openUntil.Load() {
			return false
		}
		if b.state.CompareAndSwap(int32(CircuitOpen), int32(CircuitHalfOpen)) {
			b.probing.Store(true)
			return true
		}
		return false
	default:
		return b.probing.CompareAndSwap(false, true)
	}
}

func (b *circuitBreaker) OnSuccess() {
	b.probing.Store(false)
	b.state.Store(int32(CircuitClosed))
}

// OnFailure returns true when this failure opened the circuit.
func (b *circuitBreaker) OnFailure(consecutiveFails int32) bool {
	if b.threshold <= 0 {
		return false
	}
	b.probing.Store(false)
	if b.State() == CircuitHalfOpen || consecutiveFails >= b.threshold {
		b.openUntil.Store(b.now().Add(b.cooldown).UnixNano())
		prev := CircuitState(b.state.Swap(int32(CircuitOpen)))
		return prev != CircuitOpen
	}
	return false
}
