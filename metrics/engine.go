package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// EngineMetrics records calls made into the tree engine.
type EngineMetrics interface {
	// RecordOp records a completed engine call with its operation name,
	// duration and outcome
	RecordOp(op string, duration time.Duration, err error)

	// RecordBytes records payload bytes moved by read or write
	RecordBytes(direction string, n int)
}

// engineMetrics is the Prometheus implementation of EngineMetrics.
type engineMetrics struct {
	opsTotal   *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	bytesTotal *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics with reg. A nil reg returns a
// no-op implementation.
func NewEngineMetrics(reg prometheus.Registerer) EngineMetrics {
	if reg == nil {
		return NewNoopEngineMetrics()
	}

	return &engineMetrics{
		opsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "treefs_engine_operations_total",
				Help: "Total number of engine operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		opDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "treefs_engine_operation_duration_seconds",
				Help: "Duration of engine operations in seconds",
				Buckets: []float64{
					0.00001, // 10us
					0.0001,  // 100us
					0.001,   // 1ms
					0.01,    // 10ms
					0.1,     // 100ms
				},
			},
			[]string{"operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "treefs_engine_bytes_total",
				Help: "Total bytes read from or written to file content",
			},
			[]string{"direction"},
		),
	}
}

func (m *engineMetrics) RecordOp(op string, duration time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.opsTotal.WithLabelValues(op, status).Inc()
	m.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *engineMetrics) RecordBytes(direction string, n int) {
	if n <= 0 {
		return
	}
	m.bytesTotal.WithLabelValues(direction).Add(float64(n))
}

// noopEngineMetrics discards everything
type noopEngineMetrics struct{}

// NewNoopEngineMetrics returns an EngineMetrics that records nothing
func NewNoopEngineMetrics() EngineMetrics {
	return noopEngineMetrics{}
}

func (noopEngineMetrics) RecordOp(string, time.Duration, error) {}

func (noopEngineMetrics) RecordBytes(string, int) {}
