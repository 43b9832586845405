// Package telemetry records one OpenTelemetry client span per executed test
// case and exports them over OTLP/gRPC when an endpoint is configured.
package telemetry
