package instrumentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCaptureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return logger, &buf
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestToolInvocationBuilder(t *testing.T) {
	ti := NewToolInvocation("gmail_list_threads").
		WithUser("jane@example.com").
		WithAccount("work").
		WithService(ServiceGmail, OperationList).
		Complete(true, nil)

	assert.Equal(t, "gmail_list_threads", ti.Tool)
	assert.Equal(t, "jane@example.com", ti.UserEmail)
	assert.Equal(t, "example.com", ti.UserDomain())
	assert.Equal(t, StatusSuccess, ti.Status())
	assert.True(t, ti.Success)
	assert.Empty(t, ti.Error)
	assert.GreaterOrEqual(t, ti.Duration, time.Duration(0))
}

func TestToolInvocationCompleteWithError(t *testing.T) {
	ti := NewToolInvocation("gmail_send_email").
		Complete(false, errors.New("quota exceeded"))

	assert.Equal(t, StatusError, ti.Status())
	assert.Equal(t, "quota exceeded", ti.Error)
}

func TestToolInvocationLogAttrsExcludesEmail(t *testing.T) {
	ti := NewToolInvocation("gmail_get_thread").
		WithUser("jane@example.com").
		WithAccount("default").
		Complete(true, nil)

	attrs := ti.LogAttrs()

	keys := make(map[string]string)
	for _, attr := range attrs {
		keys[attr.Key] = attr.Value.String()
	}

	assert.Equal(t, "example.com", keys["user_domain"])
	assert.NotContains(t, keys, "user")
	// The default account is implied, not logged.
	assert.NotContains(t, keys, "account")
}

func TestToolInvocationLogAuditAttrsIncludesEmail(t *testing.T) {
	ti := NewToolInvocation("gmail_get_thread").
		WithUser("jane@example.com").
		WithAccount("default").
		Complete(true, nil)

	attrs := ti.LogAuditAttrs()

	keys := make(map[string]string)
	for _, attr := range attrs {
		keys[attr.Key] = attr.Value.String()
	}

	assert.Equal(t, "jane@example.com", keys["user"])
	assert.Equal(t, "default", keys["account"])
}

func TestAuditLoggerLogToolInvocation(t *testing.T) {
	logger, buf := newCaptureLogger()
	audit := NewAuditLogger(logger)

	ti := NewToolInvocation("calendar_list_events").
		WithUser("jane@example.com").
		Complete(true, nil)
	audit.LogToolInvocation(ti)

	entry := decodeLogLine(t, buf)
	assert.Equal(t, "tool_executed", entry["msg"])
	assert.Equal(t, "example.com", entry["user_domain"])
	assert.NotContains(t, entry, "user")
}

func TestAuditLoggerIncludePII(t *testing.T) {
	logger, buf := newCaptureLogger()
	audit := NewAuditLogger(logger)
	audit.SetIncludePII(true)

	ti := NewToolInvocation("calendar_list_events").
		WithUser("jane@example.com").
		Complete(false, errors.New("backend unavailable"))
	audit.LogToolInvocation(ti)

	entry := decodeLogLine(t, buf)
	assert.Equal(t, "tool_failed", entry["msg"])
	assert.Equal(t, "jane@example.com", entry["user"])
	assert.Equal(t, "backend unavailable", entry["error"])
}

func TestAuditLoggerDisabled(t *testing.T) {
	logger, buf := newCaptureLogger()
	audit := NewAuditLogger(logger)
	audit.SetEnabled(false)

	audit.LogToolInvocation(NewToolInvocation("gmail_list_threads").Complete(true, nil))
	audit.LogDelivery(&DeliveryRecord{DeliveryID: "d1", Server: "serverA", Success: true})

	assert.Zero(t, buf.Len())
}

func TestAuditLoggerLogDelivery(t *testing.T) {
	logger, buf := newCaptureLogger()
	audit := NewAuditLogger(logger)

	audit.LogDelivery(&DeliveryRecord{
		DeliveryID: "d1",
		Server:     "serverA",
		Mailbox:    "a@x.com",
		Items:      2,
		Truncated:  false,
		Duration:   25 * time.Millisecond,
		Success:    true,
	})

	entry := decodeLogLine(t, buf)
	assert.Equal(t, "delivery_audit", entry["msg"])
	assert.Equal(t, "d1", entry["delivery_id"])
	assert.Equal(t, "serverA", entry["server"])
	assert.Equal(t, "x.com", entry["mailbox_domain"])
	assert.NotContains(t, entry, "mailbox")
	assert.Equal(t, float64(2), entry["items"])
}

func TestDeliveryRecordLogAttrsWithPII(t *testing.T) {
	dr := &DeliveryRecord{
		DeliveryID: "d2",
		Server:     "serverB",
		Mailbox:    "b@y.com",
		Success:    false,
		Error:      "history cursor no longer valid",
	}

	keys := make(map[string]string)
	for _, attr := range dr.LogAttrs(true) {
		keys[attr.Key] = attr.Value.String()
	}

	assert.Equal(t, "b@y.com", keys["mailbox"])
	assert.NotContains(t, keys, "mailbox_domain")
	assert.Equal(t, "history cursor no longer valid", keys["error"])
}
