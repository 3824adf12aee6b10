package phonebook

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one engine counter or histogram.
type MetricID uint16

const (
	MetricSignupSuccess MetricID = iota
	MetricSignupDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginUnverified
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricLogout
	MetricLogoutNoSession
	MetricSessionCreated
	MetricSessionInvalidated
	MetricAuthSuccess
	MetricAuthMissingToken
	MetricAuthInvalidToken
	MetricAuthNoSession
	MetricAuthUnknownUser
	MetricEmailVerificationRequest
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricRecoveryRateLimited
	MetricMailFailure
	// Histograms follow the counters.
	MetricAuthenticateLatency
	MetricLoginLatency
	metricIDCount
)

const histBucketCount = 8

// latencyBounds are the inclusive upper bounds of the first seven buckets;
// the eighth catches everything slower.
var latencyBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// IsHistogram reports whether id names a latency histogram rather than a
// counter.
func IsHistogram(id MetricID) bool {
	return id == MetricAuthenticateLatency || id == MetricLoginLatency
}

// Counters are padded to a cache line each since every request goroutine
// bumps them.
type paddedCounter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed set of lock-free counters and histograms. A nil or
// disabled *Metrics ignores every call.
type Metrics struct {
	enabled    bool
	latency    bool
	counters   [metricIDCount]paddedCounter
	histograms [metricIDCount][histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount || IsHistogram(id) {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d into the histogram of id. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || !IsHistogram(id) {
		return
	}
	m.histograms[id][bucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		switch {
		case !IsHistogram(id):
			s.Counters[id] = m.counters[id].Load()
		case m.latency:
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = m.histograms[id][i].Load()
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
