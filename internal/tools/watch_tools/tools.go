package watch_tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/pushbox/internal/checkpoint"
	"github.com/teemow/pushbox/internal/gmail"
	"github.com/teemow/pushbox/internal/google"
	"github.com/teemow/pushbox/internal/instrumentation"
	"github.com/teemow/pushbox/internal/server"
	"github.com/teemow/pushbox/internal/tools/common"
)

// RegisterWatchTools registers the watch lifecycle tools. Watch management
// mutates mailbox state upstream, so the tools are skipped in read-only
// mode except for the status tool.
func RegisterWatchTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	watchStatusTool := mcp.NewTool("gmail_watch_status",
		mcp.WithDescription("Show the stored history checkpoint for a tenant server"),
		mcp.WithString("server",
			mcp.Required(),
			mcp.Description("Tenant server name the watch belongs to"),
		),
	)
	s.AddTool(watchStatusTool, common.Instrumented(sc, "gmail_watch_status", instrumentation.ServiceGmail, instrumentation.OperationGet,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleWatchStatus(ctx, request, sc)
		}))

	if sc.ReadOnly() {
		return nil
	}

	watchStartTool := mcp.NewTool("gmail_watch_start",
		mcp.WithDescription("Start a Gmail mailbox watch and arm push notifications for a tenant server"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("server",
			mcp.Required(),
			mcp.Description("Tenant server name deliveries will carry in the x-mcp-name header"),
		),
		mcp.WithString("topic",
			mcp.Description("Pub/Sub topic to publish to (default: the configured topic)"),
		),
	)
	s.AddTool(watchStartTool, common.Instrumented(sc, "gmail_watch_start", instrumentation.ServiceGmail, instrumentation.OperationWatch,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleWatchStart(ctx, request, sc)
		}))

	watchStopTool := mcp.NewTool("gmail_watch_stop",
		mcp.WithDescription("Stop the Gmail mailbox watch for an account"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
	)
	s.AddTool(watchStopTool, common.Instrumented(sc, "gmail_watch_stop", instrumentation.ServiceGmail, instrumentation.OperationWatch,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleWatchStop(ctx, request, sc)
		}))

	return nil
}

func clientForAccount(sc *server.ServerContext, account string) (*gmail.Client, *mcp.CallToolResult) {
	client := sc.GmailClientForAccount(account)
	if client == nil {
		return nil, mcp.NewToolResultError(google.GetAuthenticationErrorMessage(account))
	}
	return client, nil
}

func handleWatchStart(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	serverName, ok := args["server"].(string)
	if !ok || serverName == "" {
		return mcp.NewToolResultError("server is required"), nil
	}

	topic := sc.PubSubTopic()
	if raw, ok := args["topic"].(string); ok && raw != "" {
		topic = raw
	}
	if topic == "" {
		return mcp.NewToolResultError("no Pub/Sub topic configured, pass 'topic' or start the server with --pubsub-topic"), nil
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	info, err := client.StartWatch(ctx, topic)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start watch: %v", err)), nil
	}

	// Seeding the checkpoint arms the webhook: deliveries for this server
	// enumerate from here on.
	if err := sc.Checkpoints().Put(ctx, serverName, info.HistoryID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("watch started but failed to seed checkpoint: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Watch started for server %q on topic %s.\nHistory cursor seeded at %s, watch expires %s.",
		serverName, topic, info.HistoryID, info.Expiration.Format(time.RFC3339),
	)), nil
}

func handleWatchStop(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	if err := client.StopWatch(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop watch: %v", err)), nil
	}

	return mcp.NewToolResultText("Watch stopped. Stored checkpoints are kept for a later restart."), nil
}

func handleWatchStatus(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	serverName, ok := args["server"].(string)
	if !ok || serverName == "" {
		return mcp.NewToolResultError("server is required"), nil
	}

	cursor, err := sc.Checkpoints().Get(ctx, serverName)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return mcp.NewToolResultText(fmt.Sprintf("No watch initialized for server %q.", serverName)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read checkpoint: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Server %q is armed, history cursor %s.", serverName, cursor)), nil
}
