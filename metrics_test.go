package gateway

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSessionCreated)

	if got := m.Value(MetricSessionCreated); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled snapshot should be empty")
	}
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricSessionCreated)
	m.Observe(MetricResolveLatency, time.Millisecond)
	if m.Value(MetricSessionCreated) != 0 || m.Enabled() {
		t.Fatal("nil metrics should read as zero")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricSessionResolved)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricSessionResolved); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	for _, d := range []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	} {
		m.Observe(MetricResolveLatency, d)
	}
	// Counters have no histogram.
	m.Observe(MetricSessionCreated, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricResolveLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricSessionCreated]; ok {
		t.Fatal("unexpected histogram for counter metric")
	}
}

func TestMetricsSnapshotOmitsLatencyCounter(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricForcedSync)
	m.Inc(MetricForcedSync)

	snap := m.Snapshot()
	if snap.Counters[MetricForcedSync] != 2 {
		t.Fatalf("expected 2 forced syncs, got %d", snap.Counters[MetricForcedSync])
	}
	if _, ok := snap.Counters[MetricResolveLatency]; ok {
		t.Fatal("latency id should not appear as a counter")
	}
	if len(snap.Histograms) != 0 {
		t.Fatal("histograms disabled")
	}
}
