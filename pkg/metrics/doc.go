/*
Package metrics provides Prometheus metrics collection and exposition for the
logic runtime.

All metrics are package-level prometheus collectors registered in init(),
following the same pattern throughout: declare the collector as a var, call
prometheus.MustRegister in init(), update it inline at the call site or via
the Timer helper.

# Catalog

Bus: knxlogic_addresses_total{kind}, knxlogic_telegrams_total{origin},
knxlogic_bus_write_duration_seconds.

Instances: knxlogic_instances_total{state}, knxlogic_instance_failures_total{type_key},
knxlogic_instances_disabled_total.

Scheduler: knxlogic_execution_latency_seconds, knxlogic_execution_timeouts_total,
knxlogic_run_queue_depth.

Remanent store: knxlogic_checkpoint_duration_seconds, knxlogic_checkpoint_failures_total.

Broadcast: knxlogic_subscribers_disconnected_total.

I/O worker pool: knxlogic_ioworker_queue_depth, knxlogic_ioworker_dropped_total.

Gateway: knxlogic_gateway_send_failures_total.

# Usage

	timer := metrics.NewTimer()
	err := instance.Execute(ctx)
	timer.ObserveDuration(metrics.ExecutionLatency)

	metrics.InstanceFailuresTotal.WithLabelValues(instance.TypeKey).Inc()

Collector polls gauges that have no natural update point (instance counts by
state, address counts by kind) on a 15s tick; everything else is updated
inline where the event happens.

The health sub-api (HealthChecker, RegisterComponent, HealthHandler,
ReadyHandler, LivenessHandler) backs the operational surface's /healthz
endpoint; the scheduler, storage, and bus components register their
liveness here at startup.
*/
package metrics
