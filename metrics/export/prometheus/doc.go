// Package prometheus exposes the gateway counters through
// prometheus/client_golang.
//
// [NewCollector] returns a prometheus.Collector that reads
// [gateway.Engine.MetricsSnapshot] on every scrape; [Handler] mounts it on
// a private registry. Counter names are prefixed sessiongate_ and end in
// _total; the only histogram is sessiongate_resolve_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
