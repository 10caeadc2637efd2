// Package metrics provides Prometheus instrumentation for the nexus:
// session management channel counters, hook registry gauges, and
// background worker latency histograms.
package metrics
