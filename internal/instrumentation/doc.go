// Package instrumentation provides OpenTelemetry metrics and tracing plus
// structured audit logging.
//
// A Provider owns the meter and tracer providers and exposes a Metrics
// recorder. Metrics cover the HTTP surface, Google API calls, MCP tool
// invocations and the push delivery pipeline (deliveries, resynchronizations,
// checkpoint operations). The Prometheus exporter is the default; OTLP and
// stdout exporters are available for collector-based setups and debugging.
//
// High-cardinality labels (account emails, tenant names) are only attached
// when detailed labels are explicitly enabled.
package instrumentation
