package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/pushbox/internal/instrumentation"
	"github.com/teemow/pushbox/internal/server"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = mcpserver.ToolHandlerFunc

// Instrumented wraps a tool handler with a span, a metric sample, and an
// audit record. A result carrying IsError counts as a failure even though
// the handler returns it without a Go error.
func Instrumented(sc *server.ServerContext, tool, service, operation string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		ctx, span := instrumentation.StartToolSpan(ctx, tool)
		defer span.End()

		account := GetAccountFromArgs(ctx, request.GetArguments())

		invocation := instrumentation.NewToolInvocation(tool).
			WithUser(account).
			WithAccount(account).
			WithService(service, operation).
			WithSpanContext(ctx)

		result, err := handler(ctx, request)

		success := err == nil && (result == nil || !result.IsError)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if !success {
			status = instrumentation.StatusError
		}

		sc.Metrics().RecordToolInvocationWithAccount(ctx, tool, status, account, duration)
		sc.Metrics().RecordGoogleAPIOperation(ctx, service, operation, status, duration)
		sc.Audit().LogToolInvocation(invocation.Complete(success, err))

		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		return result, err
	}
}
