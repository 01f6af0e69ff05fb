// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// [New] registers one observable counter per engine counter and one
// observable gauge per latency bucket, all fed by a single callback that
// reads Engine.MetricsSnapshot at collection time. Callers own the
// MeterProvider.
package otel
