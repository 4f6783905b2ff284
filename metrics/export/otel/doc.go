// Package otel publishes the gateway counters through OpenTelemetry.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and
// an Int64ObservableGauge per latency bucket. One callback reads
// [gateway.Engine.MetricsSnapshot] per collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
