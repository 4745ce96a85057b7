package seqio

import (
	"sync/atomic"
	"time"
)

// StallLatencyBuckets defines the buffer-wait-stall latency histogram
// buckets in nanoseconds, logarithmically spaced from 1us to 10s.
var StallLatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numStallBuckets = 8

// Metrics tracks performance and operational statistics for a Reader or
// Writer stream.
type Metrics struct {
	// Bytes moved through Read/Write.
	BytesStreamed atomic.Uint64

	// Submissions issued to the completion engine.
	Submissions atomic.Uint64
	// CompletionErrors counts fatal completion-side invariant violations.
	CompletionErrors atomic.Uint64

	// BufferStalls counts how many times Read/Write had to block waiting
	// for an in-flight buffer to become StatusReadyForProcess.
	BufferStalls atomic.Uint64
	// StallLatencyNs is the cumulative nanoseconds spent in those waits.
	StallLatencyNs atomic.Uint64
	// StallHistogram holds cumulative per-bucket stall counts.
	StallHistogram [numStallBuckets]atomic.Uint64

	// TailFlushes counts unaligned-tail operations (the Reader's final read,
	// the Writer's final partial-buffer write) through the conventional
	// file handle.
	TailFlushes atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordTransfer records bytes moved by one completed Read or Write call.
func (m *Metrics) RecordTransfer(bytes uint64) {
	m.BytesStreamed.Add(bytes)
}

// RecordSubmission records one SubmitRead/SubmitWrite call.
func (m *Metrics) RecordSubmission() {
	m.Submissions.Add(1)
}

// RecordCompletionError records one fatal completion invariant violation.
func (m *Metrics) RecordCompletionError() {
	m.CompletionErrors.Add(1)
}

// RecordStall records time spent waiting for a buffer to become available.
func (m *Metrics) RecordStall(latencyNs uint64) {
	m.BufferStalls.Add(1)
	m.StallLatencyNs.Add(latencyNs)
	for i, bucket := range StallLatencyBuckets {
		if latencyNs <= bucket {
			m.StallHistogram[i].Add(1)
		}
	}
}

// RecordTailFlush records one unaligned-tail read or write.
func (m *Metrics) RecordTailFlush() {
	m.TailFlushes.Add(1)
}

// Stop marks the stream as closed.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics.
type MetricsSnapshot struct {
	BytesStreamed    uint64
	Submissions      uint64
	CompletionErrors uint64
	BufferStalls     uint64
	AvgStallLatencyNs uint64
	TailFlushes      uint64
	UptimeNs         uint64
	Bandwidth        float64 // bytes per second
	StallHistogram   [numStallBuckets]uint64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		BytesStreamed:    m.BytesStreamed.Load(),
		Submissions:      m.Submissions.Load(),
		CompletionErrors: m.CompletionErrors.Load(),
		BufferStalls:     m.BufferStalls.Load(),
		TailFlushes:      m.TailFlushes.Load(),
	}

	if snap.BufferStalls > 0 {
		snap.AvgStallLatencyNs = m.StallLatencyNs.Load() / snap.BufferStalls
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}
	if snap.UptimeNs > 0 {
		snap.Bandwidth = float64(snap.BytesStreamed) / (float64(snap.UptimeNs) / 1e9)
	}

	for i := 0; i < numStallBuckets; i++ {
		snap.StallHistogram[i] = m.StallHistogram[i].Load()
	}
	return snap
}

// Reset zeroes all counters. Useful for testing.
func (m *Metrics) Reset() {
	m.BytesStreamed.Store(0)
	m.Submissions.Store(0)
	m.CompletionErrors.Store(0)
	m.BufferStalls.Store(0)
	m.StallLatencyNs.Store(0)
	m.TailFlushes.Store(0)
	for i := 0; i < numStallBuckets; i++ {
		m.StallHistogram[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection for Reader/Writer streams.
type Observer interface {
	ObserveTransfer(bytes uint64)
	ObserveSubmission()
	ObserveCompletionError()
	ObserveStall(latencyNs uint64)
	ObserveTailFlush()
}

// NoOpObserver is a no-op Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveTransfer(uint64)      {}
func (NoOpObserver) ObserveSubmission()           {}
func (NoOpObserver) ObserveCompletionError()      {}
func (NoOpObserver) ObserveStall(uint64)          {}
func (NoOpObserver) ObserveTailFlush()            {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveTransfer(bytes uint64) { o.metrics.RecordTransfer(bytes) }
func (o *MetricsObserver) ObserveSubmission()           { o.metrics.RecordSubmission() }
func (o *MetricsObserver) ObserveCompletionError()      { o.metrics.RecordCompletionError() }
func (o *MetricsObserver) ObserveStall(latencyNs uint64) { o.metrics.RecordStall(latencyNs) }
func (o *MetricsObserver) ObserveTailFlush()            { o.metrics.RecordTailFlush() }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
