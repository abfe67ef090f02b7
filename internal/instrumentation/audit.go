package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation captures one MCP tool call for the audit trail.
//
// UserEmail is PII. General logs get the domain only; the full address
// appears solely in audit streams with IncludePII enabled.
type ToolInvocation struct {
	Tool string

	// User identity (from OAuth)
	UserEmail string

	// Target information
	Account     string // Account name (default, work, ...)
	ServiceName string // Google service (gmail, calendar)
	Operation   string // Operation type (list, get, create, ...)

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// UserDomain returns the domain portion of the user's email.
func (ti *ToolInvocation) UserDomain() string {
	return ExtractUserDomain(ti.UserEmail)
}

// Status returns "success" or "error".
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns cardinality-controlled slog attributes (domain, not
// full email).
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user_domain", ti.UserDomain()),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	if ti.Account != "" && ti.Account != "default" {
		attrs = append(attrs, slog.String("account", ti.Account))
	}
	if ti.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ti.ServiceName))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// LogAuditAttrs returns full audit attributes including the user email.
// Route these logs to secured storage only.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user", ti.UserEmail),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	if ti.Account != "" {
		attrs = append(attrs, slog.String("account", ti.Account))
	}
	if ti.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ti.ServiceName))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// NewToolInvocation creates a ToolInvocation with timing started. Call
// Complete when the tool finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithUser sets the user identity.
func (ti *ToolInvocation) WithUser(email string) *ToolInvocation {
	ti.UserEmail = email
	return ti
}

// WithAccount sets the Google account name.
func (ti *ToolInvocation) WithAccount(account string) *ToolInvocation {
	ti.Account = account
	return ti
}

// WithService sets the Google service and operation.
func (ti *ToolInvocation) WithService(serviceName, operation string) *ToolInvocation {
	ti.ServiceName = serviceName
	ti.Operation = operation
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
		ti.SpanID = span.SpanContext().SpanID().String()
	}
	return ti
}

// Complete marks the invocation as finished and computes the duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// DeliveryRecord captures one push delivery for the audit trail.
type DeliveryRecord struct {
	DeliveryID string
	Server     string
	Mailbox    string // PII, domain-reduced unless IncludePII
	Items      int
	Truncated  bool
	Duration   time.Duration
	Success    bool
	Error      string
	TraceID    string
}

// LogAttrs returns slog attributes; full mailbox address only with
// includePII.
func (dr *DeliveryRecord) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("delivery_id", dr.DeliveryID),
		slog.String("server", dr.Server),
		slog.Int("items", dr.Items),
		slog.Bool("truncated", dr.Truncated),
		slog.Duration("duration", dr.Duration),
		slog.Bool("success", dr.Success),
	}

	if dr.Mailbox != "" {
		if includePII {
			attrs = append(attrs, slog.String("mailbox", dr.Mailbox))
		} else {
			attrs = append(attrs, slog.String("mailbox_domain", ExtractUserDomain(dr.Mailbox)))
		}
	}
	if dr.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", dr.TraceID))
	}
	if dr.Error != "" {
		attrs = append(attrs, slog.String("error", dr.Error))
	}

	return attrs
}

// AuditLogger provides structured audit logging for tool invocations and
// push deliveries.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. PII is excluded by default.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates an AuditLogger from configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether full email addresses appear in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled toggles audit logging.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogToolInvocation logs one tool invocation, with or without PII per
// configuration.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}

// LogDelivery logs one processed push delivery.
func (al *AuditLogger) LogDelivery(dr *DeliveryRecord) {
	if !al.enabled {
		return
	}

	attrs := dr.LogAttrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if dr.Success {
		al.logger.Info("delivery_audit", args...)
	} else {
		al.logger.Warn("delivery_audit", args...)
	}
}
