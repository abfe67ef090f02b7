package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrAccount   = "account"
	attrServer    = "server"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Push delivery metrics
	deliveriesTotal      metric.Int64Counter
	deliveryDuration     metric.Float64Histogram
	resyncTotal          metric.Int64Counter
	checkpointOpsTotal   metric.Int64Counter
	historyPagesFetched  metric.Int64Counter

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a Metrics instance with all instruments registered.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.deliveriesTotal, err = meter.Int64Counter(
		"webhook_deliveries_total",
		metric.WithDescription("Total number of processed push deliveries"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook_deliveries_total counter: %w", err)
	}

	m.deliveryDuration, err = meter.Float64Histogram(
		"webhook_delivery_duration_seconds",
		metric.WithDescription("Push delivery processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook_delivery_duration_seconds histogram: %w", err)
	}

	m.resyncTotal, err = meter.Int64Counter(
		"history_resync_total",
		metric.WithDescription("Total number of checkpoint resynchronizations after a stale cursor"),
		metric.WithUnit("{resync}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create history_resync_total counter: %w", err)
	}

	m.checkpointOpsTotal, err = meter.Int64Counter(
		"checkpoint_operations_total",
		metric.WithDescription("Total number of checkpoint store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint_operations_total counter: %w", err)
	}

	m.historyPagesFetched, err = meter.Int64Counter(
		"history_pages_fetched_total",
		metric.WithDescription("Total number of Gmail history pages fetched"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create history_pages_fetched_total counter: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// DeliveryProcessed records the outcome of one push delivery. The tenant
// name is a high-cardinality label and only attached when detailed labels
// are enabled.
func (m *Metrics) DeliveryProcessed(ctx context.Context, server, result string, seconds float64) {
	if m.deliveriesTotal == nil || m.deliveryDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}
	if m.detailedLabels && server != "" {
		attrs = append(attrs, attribute.String(attrServer, server))
	}

	m.deliveriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.deliveryDuration.Record(ctx, seconds, metric.WithAttributes(attrs...))
}

// ResyncPerformed records a checkpoint resynchronization after a stale cursor.
func (m *Metrics) ResyncPerformed(ctx context.Context, server string) {
	if m.resyncTotal == nil {
		return
	}

	var attrs []attribute.KeyValue
	if m.detailedLabels && server != "" {
		attrs = append(attrs, attribute.String(attrServer, server))
	}

	m.resyncTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCheckpointOperation records a checkpoint store get/put with result.
func (m *Metrics) RecordCheckpointOperation(ctx context.Context, operation, result string) {
	if m.checkpointOpsTotal == nil {
		return
	}

	m.checkpointOpsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrResult, result),
	))
}

// RecordHistoryPages records how many history pages one enumeration fetched.
func (m *Metrics) RecordHistoryPages(ctx context.Context, pages int) {
	if m.historyPagesFetched == nil || pages <= 0 {
		return
	}

	m.historyPagesFetched.Add(ctx, int64(pages))
}

// RecordGoogleAPIOperation records a Google API operation.
//
// service is the Google service name (gmail, calendar); operation the verb
// (list, get, create, ...); status "success" or "error".
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithAccount(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithAccount records an MCP tool invocation with the
// account attached when detailed labels are enabled.
func (m *Metrics) RecordToolInvocationWithAccount(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// ExtractUserDomain reduces an email address to its domain for
// cardinality-safe labels and logs. Unparseable input maps to "unknown".
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}
