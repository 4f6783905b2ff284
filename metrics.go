package gateway

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions issued by CreateSession.
	MetricSessionCreated MetricID = iota
	// MetricSessionRefreshed counts sliding and explicit refreshes.
	MetricSessionRefreshed
	// MetricSessionInvalidated counts sessions deleted from the store.
	MetricSessionInvalidated
	// MetricSessionResolved counts requests resolved to a valid session.
	MetricSessionResolved
	// MetricSessionAnonymous counts requests that carried no usable session.
	MetricSessionAnonymous
	// MetricSessionRevoked counts valid tokens whose store entry was gone.
	MetricSessionRevoked
	// MetricDecodeFailure counts tokens the codec rejected.
	MetricDecodeFailure
	// MetricLegacyReissued counts legacy or older-schema sessions re-issued
	// in the current scheme.
	MetricLegacyReissued
	// MetricForcedSync counts cookies overwritten from the store copy.
	MetricForcedSync
	// MetricFingerprintMismatch counts detected hijack attempts.
	MetricFingerprintMismatch
	// MetricFingerprintBackfill counts fingerprints bound after the fact.
	MetricFingerprintBackfill
	// MetricFingerprintFailOpen counts validations that could not verify.
	MetricFingerprintFailOpen
	// MetricBootstrapAccepted counts redeemed bootstrap parameters.
	MetricBootstrapAccepted
	// MetricBootstrapRejected counts invalid or replayed bootstrap parameters.
	MetricBootstrapRejected
	// MetricOnboardingAdvanced counts accepted onboarding transitions.
	MetricOnboardingAdvanced
	// MetricOnboardingRejected counts rejected onboarding transitions.
	MetricOnboardingRejected
	// MetricOnboardingRedirect counts requests redirected by the gate.
	MetricOnboardingRedirect
	// MetricOnboardingBypass counts redirects that denied skipping a step.
	MetricOnboardingBypass
	// MetricTenantRequired counts sessions resolved without a tenant.
	MetricTenantRequired
	// MetricMembershipMissing counts sessions naming a tenant without a
	// membership row.
	MetricMembershipMissing
	// MetricStoreUnavailable counts store failures during resolution.
	MetricStoreUnavailable
	// MetricResolveLatency is the GetSessionContext latency histogram.
	MetricResolveLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters. A nil or disabled Metrics ignores every
// call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histogram
// buckets are non-cumulative; bucket upper bounds are 5, 10, 25, 50, 100,
// 250 and 500 milliseconds, then +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only MetricResolveLatency has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricResolveLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricResolveLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricResolveLatency].buckets[i])
		}
		s.Histograms[MetricResolveLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
