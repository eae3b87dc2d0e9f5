// Package otel publishes goSession engine metrics as OpenTelemetry observable
// instruments. Callers own the MeterProvider and pass in a Meter.
package otel
