package authcore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts credential failures (unknown user or bad password).
	MetricLoginFailure
	// MetricLoginRateLimited counts logins denied by the per-IP limiter.
	MetricLoginRateLimited
	// MetricLoginLocked counts logins denied by an active lockout.
	MetricLoginLocked
	// MetricRefreshSuccess counts successful token rotations.
	MetricRefreshSuccess
	// MetricRefreshRejected counts refresh attempts with a bad or expired token.
	MetricRefreshRejected
	// MetricRefreshRevoked counts refresh attempts with a revoked token.
	MetricRefreshRevoked
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts all-device logouts.
	MetricLogoutAll
	// MetricVerify counts introspection calls.
	MetricVerify
	// MetricStoreFault counts fail-closed denials caused by store faults.
	MetricStoreFault

	metricIDCount
)

// cache-line padding keeps hot counters from false sharing.
type paddedCounter struct {
	value uint64
	_     [7]uint64
}

// Metrics holds lock-free in-process counters. Counters reset on process
// restart; durable accounting belongs to the audit sink.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] set; disabled metrics cost one branch per call.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
