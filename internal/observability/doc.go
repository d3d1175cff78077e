// Package observability provides the hub's telemetry fabric: structured
// logging with redaction, an append-only event log, Prometheus metrics,
// and tracing with an in-memory span tree plus optional OTLP export.
package observability
