package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the nexus
type Metrics struct {
	// Session management channel metrics
	SMPacketsReceived   prometheus.Counter
	SMPacketsDropped    prometheus.Counter
	SMPacketsRouted     prometheus.Counter
	SMPacketsUnroutable prometheus.Counter
	SMPacketsMalformed  prometheus.Counter

	// Hook registry metrics
	ActiveHooks     prometheus.Gauge
	HooksRegistered prometheus.Counter

	// Background worker metrics
	WorkItemsProcessed  prometheus.Counter
	WorkItemsUnroutable prometheus.Counter
	WorkItemsNoHandler  prometheus.Counter
	HandlerDuration     prometheus.Histogram
}

// New creates and registers all nexus metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all nexus metrics on the given registerer. Tests use this
// with a private registry to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SMPacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_sm_packets_received_total",
			Help: "Total number of session management datagrams received",
		}),
		SMPacketsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_sm_packets_dropped_total",
			Help: "Total number of datagrams dropped by the loss simulation knob",
		}),
		SMPacketsRouted: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_sm_packets_routed_total",
			Help: "Total number of datagrams delivered to a registered hook",
		}),
		SMPacketsUnroutable: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_sm_packets_unroutable_total",
			Help: "Total number of datagrams addressed to an unregistered endpoint",
		}),
		SMPacketsMalformed: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_sm_packets_malformed_total",
			Help: "Total number of datagrams that failed envelope parsing",
		}),
		ActiveHooks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nexus_active_hooks",
			Help: "Number of currently registered endpoint hooks",
		}),
		HooksRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_hooks_registered_total",
			Help: "Total number of successful hook registrations",
		}),
		WorkItemsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_work_items_processed_total",
			Help: "Total number of background work items processed by workers",
		}),
		WorkItemsUnroutable: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_work_items_unroutable_total",
			Help: "Total number of completions whose submitting endpoint had unregistered",
		}),
		WorkItemsNoHandler: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_work_items_no_handler_total",
			Help: "Total number of work items dropped for lack of a registered handler",
		}),
		HandlerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexus_handler_duration_seconds",
			Help:    "Latency of background request handler invocations",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12), // 1µs .. ~16s
		}),
	}
}
