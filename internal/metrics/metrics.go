// Package metrics defines the Prometheus metric types exported by this
// tool and provides package-level instruments the rest of the module
// updates as it runs, following the promauto convenience-constructor
// pattern used in m-lab-tcp-info's metrics package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsOpened counts successful Connect calls.
	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtegdbdata_sessions_opened_total",
		Help: "Number of GDB RSP sessions successfully opened.",
	})

	// SessionsClosed counts Cleanup calls.
	SessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtegdbdata_sessions_closed_total",
		Help: "Number of GDB RSP sessions closed.",
	})

	// FramesSent and FramesReceived count RSP frames at the wire level.
	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtegdbdata_frames_sent_total",
		Help: "Number of RSP frames sent to the GDB server.",
	})
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtegdbdata_frames_received_total",
		Help: "Number of well-formed RSP frames received from the GDB server.",
	})

	// ErrorsByKind tracks error occurrences by taxonomy kind (rerr.Kind.String()).
	ErrorsByKind = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtegdbdata_errors_total",
		Help: "Errors encountered, labeled by error kind.",
	}, []string{"kind"})

	// BytesRead and BytesWritten track memory I/O volume (C4).
	BytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtegdbdata_memory_bytes_read_total",
		Help: "Bytes read from target memory via the 'm' command.",
	})
	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtegdbdata_memory_bytes_written_total",
		Help: "Bytes written to target memory via the 'M' command.",
	})

	// SnapshotDuration tracks the wall time of the full pause/read/restore
	// sequence (C6 snapshot()).
	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rtegdbdata_snapshot_duration_seconds",
		Help:    "Duration of the full snapshot pause/read/restore sequence.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// BenchmarkThroughputKBs records per-iteration benchmark throughput.
	BenchmarkThroughputKBs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rtegdbdata_benchmark_throughput_kbs",
		Help:    "Per-iteration memory read throughput observed by the benchmark operation, in kB/s.",
		Buckets: prometheus.LinearBuckets(0, 50, 20),
	})
)
