// Package prometheus exposes goSession engine metrics through
// client_golang.
//
// [Collector] implements prometheus.Collector over Engine.MetricsSnapshot.
// Counter names are gosession_*_total; the single histogram is
// gosession_validate_latency_seconds. [Handler] mounts a private registry so
// nothing is added to the global default registry.
package prometheus
