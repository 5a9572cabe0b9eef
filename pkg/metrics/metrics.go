// Package metrics exposes the engine's Prometheus instrumentation. The
// columnar core stays silent; counters and histograms are recorded at the
// edges, by pipeline runs, sources, and sinks.
//
// # Basic Usage
//
//	// Count rows leaving a source
//	metrics.RowsRead.WithLabelValues("csv", "ok").Add(float64(n))
//
//	// Time a pipeline stage
//	timer := metrics.NewTimer()
//	chunk, err := it.Next(ctx)
//	metrics.StageLatency.WithLabelValues("chunk").Observe(float64(timer.Stop().Nanoseconds()))
//
//	// Report run throughput
//	tracker := metrics.NewThroughputTracker("csv", "postgres")
//	tracker.Add(int64(chunk.Len()))
//	rps := tracker.GetAndReset()
//
// All metrics are registered on the default registry; serve them with
// promhttp or read them in tests via prometheus/testutil.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsRead counts rows produced by sources.
	// Labels: source (format name), status (ok/error).
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_rows_read_total",
			Help: "Total rows produced by sources",
		},
		[]string{"source", "status"},
	)

	// RowsWritten counts rows consumed by sinks.
	// Labels: sink (format name), status (ok/error).
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_rows_written_total",
			Help: "Total rows written by sinks",
		},
		[]string{"sink", "status"},
	)

	// BatchesProcessed counts batches flowing out of each stage kind.
	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_batches_processed_total",
			Help: "Total batches emitted per stage",
		},
		[]string{"stage"},
	)

	// StageLatency tracks per-pull stage latency in nanoseconds. Buckets
	// reach from in-memory scans to sink flushes.
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "quasar_stage_latency_nanoseconds",
			Help: "Per-pull stage latency in nanoseconds",
			Buckets: []float64{
				1000,  // 1µs in-memory batch hops
				10000, // 10µs scans
				1e5,   // 100µs wide batches
				1e6,   // 1ms parse-heavy pulls
				1e7,   // 10ms file reads
				1e8,   // 100ms bulk sink flushes
				1e9,   // 1s pathological pulls
			},
		},
		[]string{"stage"},
	)

	// TableMemory reports resident bytes of named tables.
	TableMemory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quasar_table_memory_bytes",
			Help: "Memory held by named tables",
		},
		[]string{"table"},
	)

	// Throughput reports rows per second for source to sink runs.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quasar_throughput_rows_per_second",
			Help: "Rows per second per pipeline run",
		},
		[]string{"source", "sink"},
	)
)

// Timer measures one operation. Zero cost beyond a time.Now.
type Timer struct {
	start time.Time
}

// NewTimer starts timing.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer started. Calling it again
// keeps measuring from the same start.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker accumulates row counts and turns them into a rows/sec
// gauge on demand. Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	source    string
	sink      string
}

// NewThroughputTracker creates a tracker labeled with the run's source
// and sink names.
func NewThroughputTracker(source, sink string) *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now(), source: source, sink: sink}
}

// Add counts n more rows.
func (t *ThroughputTracker) Add(n int64) {
	t.mu.Lock()
	t.count += n
	t.mu.Unlock()
}

// GetAndReset computes rows/sec since the last reset, publishes it to the
// Throughput gauge, and resets the window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}
	rps := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.source, t.sink).Set(rps)
	return rps
}
