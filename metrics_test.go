package phonebook

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatal("disabled metrics must snapshot empty")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricAuthenticateLatency, time.Millisecond)
	if m.Value(MetricLogout) != 0 || m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must be inert")
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
				m.Inc(MetricAuthSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricAuthSuccess); got != want {
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
		m.Observe(MetricAuthenticateLatency, d)
	}
	// Counter ids have no histogram.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricAuthenticateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsSnapshotExcludesHistogramCounter(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)

	snap := m.Snapshot()
	if snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("expected 2 got %d", snap.Counters[MetricLoginFailure])
	}
	if _, ok := snap.Counters[MetricAuthenticateLatency]; ok {
		t.Fatal("histogram id must not appear among counters")
	}
	if _, ok := snap.Histograms[MetricAuthenticateLatency]; ok {
		t.Fatal("histograms disabled, none expected")
	}
}

func TestMetricsLoginLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginLatency, 120*time.Millisecond)
	m.Observe(MetricLoginLatency, 2*time.Second)
	m.Inc(MetricLoginLatency)

	snap := m.Snapshot()
	want := []uint64{0, 0, 0, 0, 0, 1, 0, 1}
	got := snap.Histograms[MetricLoginLatency]
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if _, ok := snap.Counters[MetricLoginLatency]; ok {
		t.Fatal("histogram ids must not be counted")
	}
}
