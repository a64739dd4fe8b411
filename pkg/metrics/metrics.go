package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CRM resource accounting

	CRMUsedTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "switchorch_crm_used_total",
			Help: "Current usage count for a CRM-tracked resource, by resource kind and scope",
		},
		[]string{"resource", "scope"},
	)

	CRMHighWatermark = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "switchorch_crm_high_watermark",
			Help: "High watermark usage count for a CRM-tracked resource, by resource kind and scope",
		},
		[]string{"resource", "scope"},
	)

	// Consumer queue

	ConsumerQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "switchorch_consumer_queue_depth",
			Help: "Number of coalesced keys currently queued for a table's consumer",
		},
		[]string{"table"},
	)

	ConsumerTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchorch_consumer_tasks_total",
			Help: "Total tasks drained from a consumer queue, by table and resulting status",
		},
		[]string{"table", "status"},
	)

	// Orch sweep / dispatch

	OrchSweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchorch_orch_sweep_duration_seconds",
			Help:    "Time taken for an orch to sweep its pending task map in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"orch"},
	)

	OrchSweepCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchorch_orch_sweep_cycles_total",
			Help: "Total sweep cycles completed by an orch",
		},
		[]string{"orch"},
	)

	OrchRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchorch_orch_retries_total",
			Help: "Total tasks requeued for retry by an orch, by table",
		},
		[]string{"orch", "table"},
	)

	// Bulker

	BulkerFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchorch_bulker_flush_duration_seconds",
			Help:    "Time taken to flush a bulker's staged entries to the HAL in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bulker"},
	)

	BulkerFlushChunkSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchorch_bulker_flush_chunk_size",
			Help:    "Number of entries included in a single bulker flush chunk",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"bulker"},
	)

	BulkerPendingEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "switchorch_bulker_pending_entries",
			Help: "Number of entries currently staged in a bulker, by operation kind",
		},
		[]string{"bulker", "op"},
	)

	// Response publisher

	ResponsePublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchorch_response_publish_duration_seconds",
			Help:    "Time taken to write a response row and emit its notification in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	ResponsePublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchorch_response_publish_total",
			Help: "Total responses published, by table and status",
		},
		[]string{"table", "status"},
	)

	// Warm restart

	WarmRestartState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "switchorch_warm_restart_state",
			Help: "Current warm-restart lifecycle state for a module (0=INIT,1=RESTORED,2=REPLAYED,3=RECONCILED)",
		},
		[]string{"module"},
	)

	// HAL

	HALCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchorch_hal_call_duration_seconds",
			Help:    "Time taken for a HAL call to return in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	HALCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchorch_hal_calls_total",
			Help: "Total HAL calls issued, by operation and resulting task status",
		},
		[]string{"operation", "status"},
	)

	HALCircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchorch_hal_circuit_state",
			Help: "State of the HAL circuit breaker (0=closed,1=half-open,2=open)",
		},
	)

	// Recorder

	RecorderWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchorch_recorder_writes_total",
			Help: "Total lines appended to a recorder journal",
		},
		[]string{"journal"},
	)
)

func init() {
	prometheus.MustRegister(CRMUsedTotal)
	prometheus.MustRegister(CRMHighWatermark)
	prometheus.MustRegister(ConsumerQueueDepth)
	prometheus.MustRegister(ConsumerTasksTotal)
	prometheus.MustRegister(OrchSweepDuration)
	prometheus.MustRegister(OrchSweepCyclesTotal)
	prometheus.MustRegister(OrchRetriesTotal)
	prometheus.MustRegister(BulkerFlushDuration)
	prometheus.MustRegister(BulkerFlushChunkSize)
	prometheus.MustRegister(BulkerPendingEntries)
	prometheus.MustRegister(ResponsePublishDuration)
	prometheus.MustRegister(ResponsePublishTotal)
	prometheus.MustRegister(WarmRestartState)
	prometheus.MustRegister(HALCallDuration)
	prometheus.MustRegister(HALCallsTotal)
	prometheus.MustRegister(HALCircuitState)
	prometheus.MustRegister(RecorderWritesTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
