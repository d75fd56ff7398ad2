package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Address bus metrics
	AddressesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "knxlogic_addresses_total",
			Help: "Total number of addresses on the bus by kind (external/internal)",
		},
		[]string{"kind"},
	)

	TelegramsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knxlogic_telegrams_total",
			Help: "Total number of telegrams emitted by origin",
		},
		[]string{"origin"},
	)

	BusWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "knxlogic_bus_write_duration_seconds",
			Help:    "Time taken to apply a single address write",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Block instance metrics
	InstancesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "knxlogic_instances_total",
			Help: "Total number of block instances by lifecycle state",
		},
		[]string{"state"},
	)

	InstanceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knxlogic_instance_failures_total",
			Help: "Total number of failed block executions",
		},
		[]string{"type_key"},
	)

	InstancesDisabledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knxlogic_instances_disabled_total",
			Help: "Total number of instances auto-disabled after repeated failures",
		},
	)

	// Scheduler metrics
	ExecutionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "knxlogic_execution_latency_seconds",
			Help:    "Time taken to run a single block execute call",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExecutionTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knxlogic_execution_timeouts_total",
			Help: "Total number of block executions that exceeded the soft timeout",
		},
	)

	RunQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "knxlogic_run_queue_depth",
			Help: "Current depth of the scheduler's run queue",
		},
	)

	// Remanent store metrics
	CheckpointDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "knxlogic_checkpoint_duration_seconds",
			Help:    "Time taken to write a remanent snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	CheckpointFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knxlogic_checkpoint_failures_total",
			Help: "Total number of failed remanent checkpoint writes",
		},
	)

	// Broadcast metrics
	SubscribersDisconnectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knxlogic_subscribers_disconnected_total",
			Help: "Total number of telegram subscribers disconnected for falling behind",
		},
	)

	// I/O worker pool metrics
	IOWorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "knxlogic_ioworker_queue_depth",
			Help: "Current depth of the I/O worker pool's submit queue",
		},
	)

	IOWorkerDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knxlogic_ioworker_dropped_total",
			Help: "Total number of I/O worker submissions dropped because the queue was full",
		},
	)

	// Gateway metrics
	GatewaySendFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knxlogic_gateway_send_failures_total",
			Help: "Total number of outbound KNX gateway sends that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(AddressesTotal)
	prometheus.MustRegister(TelegramsTotal)
	prometheus.MustRegister(BusWriteDuration)
	prometheus.MustRegister(InstancesTotal)
	prometheus.MustRegister(InstanceFailuresTotal)
	prometheus.MustRegister(InstancesDisabledTotal)
	prometheus.MustRegister(ExecutionLatency)
	prometheus.MustRegister(ExecutionTimeoutsTotal)
	prometheus.MustRegister(RunQueueDepth)
	prometheus.MustRegister(CheckpointDuration)
	prometheus.MustRegister(CheckpointFailuresTotal)
	prometheus.MustRegister(SubscribersDisconnectedTotal)
	prometheus.MustRegister(IOWorkerQueueDepth)
	prometheus.MustRegister(IOWorkerDroppedTotal)
	prometheus.MustRegister(GatewaySendFailuresTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
