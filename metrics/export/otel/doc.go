// Package otel publishes engine metrics through an OpenTelemetry meter.
//
// [NewExporter] registers three observable instruments: one counter for all
// engine events keyed by an "event" attribute, one gauge for cumulative
// latency buckets keyed by "operation" and "le", and the audit drop
// counter. A single callback reads the engine snapshot at collection time.
// The caller owns the MeterProvider.
package otel
