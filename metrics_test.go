package seqio

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.BytesStreamed != 0 {
		t.Errorf("Expected 0 initial bytes, got %d", snap.BytesStreamed)
	}

	m.RecordTransfer(1024)
	m.RecordTransfer(2048)
	m.RecordSubmission()
	m.RecordSubmission()
	m.RecordCompletionError()
	m.RecordTailFlush()

	snap = m.Snapshot()
	if snap.BytesStreamed != 3072 {
		t.Errorf("Expected 3072 bytes streamed, got %d", snap.BytesStreamed)
	}
	if snap.Submissions != 2 {
		t.Errorf("Expected 2 submissions, got %d", snap.Submissions)
	}
	if snap.CompletionErrors != 1 {
		t.Errorf("Expected 1 completion error, got %d", snap.CompletionErrors)
	}
	if snap.TailFlushes != 1 {
		t.Errorf("Expected 1 tail flush, got %d", snap.TailFlushes)
	}
}

func TestMetricsStalls(t *testing.T) {
	m := NewMetrics()

	m.RecordStall(500_000)  // 500us
	m.RecordStall(5_000_000) // 5ms

	snap := m.Snapshot()
	if snap.BufferStalls != 2 {
		t.Errorf("Expected 2 buffer stalls, got %d", snap.BufferStalls)
	}
	expectedAvg := uint64((500_000 + 5_000_000) / 2)
	if snap.AvgStallLatencyNs != expectedAvg {
		t.Errorf("Expected avg stall latency %d, got %d", expectedAvg, snap.AvgStallLatencyNs)
	}

	totalInBuckets := uint64(0)
	for _, c := range snap.StallHistogram {
		totalInBuckets += c
	}
	if totalInBuckets == 0 {
		t.Error("Expected stall histogram buckets to be populated")
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordTransfer(1024)
	m.RecordSubmission()
	m.RecordStall(1_000_000)

	snap := m.Snapshot()
	if snap.BytesStreamed == 0 {
		t.Error("Expected some bytes streamed before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.BytesStreamed != 0 {
		t.Errorf("Expected 0 bytes after reset, got %d", snap.BytesStreamed)
	}
	if snap.BufferStalls != 0 {
		t.Errorf("Expected 0 buffer stalls after reset, got %d", snap.BufferStalls)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveTransfer(1024)
	observer.ObserveSubmission()
	observer.ObserveCompletionError()
	observer.ObserveStall(1_000_000)
	observer.ObserveTailFlush()

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveTransfer(1024)
	metricsObserver.ObserveSubmission()

	snap := m.Snapshot()
	if snap.BytesStreamed != 1024 {
		t.Errorf("Expected 1024 bytes from observer, got %d", snap.BytesStreamed)
	}
	if snap.Submissions != 1 {
		t.Errorf("Expected 1 submission from observer, got %d", snap.Submissions)
	}
}

func TestMetricsBandwidth(t *testing.T) {
	m := NewMetrics()

	startTime := time.Now()
	m.StartTime.Store(startTime.UnixNano())
	m.RecordTransfer(1024)

	stopTime := startTime.Add(1 * time.Second)
	m.StopTime.Store(stopTime.UnixNano())

	snap := m.Snapshot()
	if snap.Bandwidth < 1000 || snap.Bandwidth > 1050 {
		t.Errorf("Expected Bandwidth ~1024, got %.2f", snap.Bandwidth)
	}
}
