package gmail_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	gmail_v1 "google.golang.org/api/gmail/v1"

	"github.com/teemow/pushbox/internal/gmail"
	"github.com/teemow/pushbox/internal/google"
	"github.com/teemow/pushbox/internal/instrumentation"
	"github.com/teemow/pushbox/internal/server"
	"github.com/teemow/pushbox/internal/tools/batch"
	"github.com/teemow/pushbox/internal/tools/common"
)

// RegisterGmailTools registers the Gmail tools. Write tools are skipped in
// read-only mode.
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listThreadsTool := mcp.NewTool("gmail_list_threads",
		mcp.WithDescription("List Gmail threads matching a search query"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Gmail search query (e.g. 'in:inbox', 'from:user@example.com')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of threads to return (default: 10)"),
		),
	)
	s.AddTool(listThreadsTool, common.Instrumented(sc, "gmail_list_threads", instrumentation.ServiceGmail, instrumentation.OperationList,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListThreads(ctx, request, sc)
		}))

	getThreadTool := mcp.NewTool("gmail_get_thread",
		mcp.WithDescription("Get a Gmail thread with all its messages"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("threadId",
			mcp.Required(),
			mcp.Description("The ID of the thread to fetch"),
		),
	)
	s.AddTool(getThreadTool, common.Instrumented(sc, "gmail_get_thread", instrumentation.ServiceGmail, instrumentation.OperationGet,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetThread(ctx, request, sc)
		}))

	getMessageTool := mcp.NewTool("gmail_get_message",
		mcp.WithDescription("Get a single Gmail message summary (headers and snippet)"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The ID of the message to fetch"),
		),
	)
	s.AddTool(getMessageTool, common.Instrumented(sc, "gmail_get_message", instrumentation.ServiceGmail, instrumentation.OperationGet,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetMessage(ctx, request, sc)
		}))

	if sc.ReadOnly() {
		return nil
	}

	archiveThreadsTool := mcp.NewTool("gmail_archive_threads",
		mcp.WithDescription("Archive one or more Gmail threads by removing them from the inbox"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("threadIds",
			mcp.Required(),
			mcp.Description("Thread ID (string) or array of thread IDs to archive"),
		),
	)
	s.AddTool(archiveThreadsTool, common.Instrumented(sc, "gmail_archive_threads", instrumentation.ServiceGmail, instrumentation.OperationUpdate,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleArchiveThreads(ctx, request, sc)
		}))

	unarchiveThreadsTool := mcp.NewTool("gmail_unarchive_threads",
		mcp.WithDescription("Move one or more archived Gmail threads back to the inbox"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("threadIds",
			mcp.Required(),
			mcp.Description("Thread ID (string) or array of thread IDs to unarchive"),
		),
	)
	s.AddTool(unarchiveThreadsTool, common.Instrumented(sc, "gmail_unarchive_threads", instrumentation.ServiceGmail, instrumentation.OperationUpdate,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUnarchiveThreads(ctx, request, sc)
		}))

	sendEmailTool := mcp.NewTool("gmail_send_email",
		mcp.WithDescription("Send a plain-text email through Gmail"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address(es), comma-separated for multiple recipients"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Email body content"),
		),
	)
	s.AddTool(sendEmailTool, common.Instrumented(sc, "gmail_send_email", instrumentation.ServiceGmail, instrumentation.OperationSend,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendEmail(ctx, request, sc)
		}))

	return nil
}

// clientForAccount resolves the Gmail client for the account, returning a
// tool error result when no credentials exist.
func clientForAccount(sc *server.ServerContext, account string) (*gmail.Client, *mcp.CallToolResult) {
	client := sc.GmailClientForAccount(account)
	if client == nil {
		return nil, mcp.NewToolResultError(google.GetAuthenticationErrorMessage(account))
	}
	return client, nil
}

// errStopIteration ends thread listing once maxResults is reached.
var errStopIteration = errors.New("stop iteration")

func handleListThreads(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	maxResults := 10
	if raw, ok := args["maxResults"].(float64); ok && raw > 0 {
		maxResults = int(raw)
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	var threads []*gmail_v1.Thread
	err := client.ForeachThread(ctx, query, func(t *gmail_v1.Thread) error {
		threads = append(threads, t)
		if len(threads) >= maxResults {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list threads: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d threads:\n", len(threads))
	for i, thread := range threads {
		fmt.Fprintf(&sb, "%d. Thread ID: %s (Snippet: %s)\n", i+1, thread.Id, thread.Snippet)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func handleGetThread(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	threadID, ok := args["threadId"].(string)
	if !ok || threadID == "" {
		return mcp.NewToolResultError("threadId is required"), nil
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	thread, err := client.GetThread(ctx, threadID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get thread: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Thread %s with %d messages:\n", thread.Id, len(thread.Messages))
	for i, msg := range thread.Messages {
		fmt.Fprintf(&sb, "%d. Message ID: %s (Snippet: %s)\n", i+1, msg.Id, msg.Snippet)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func handleGetMessage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	messageID, ok := args["messageId"].(string)
	if !ok || messageID == "" {
		return mcp.NewToolResultError("messageId is required"), nil
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	summary, err := client.GetMessageSummary(ctx, messageID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get message: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Message %s (thread %s)\n", summary.ID, summary.ThreadID)
	fmt.Fprintf(&sb, "From: %s\nTo: %s\nSubject: %s\nDate: %s\n", summary.From, summary.To, summary.Subject, summary.Date)
	if summary.Snippet != "" {
		fmt.Fprintf(&sb, "Snippet: %s\n", summary.Snippet)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func handleArchiveThreads(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	threadIDs, err := batch.ParseStringOrArray(args["threadIds"], "threadIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(threadIDs, func(threadID string) (string, error) {
		if err := client.ArchiveThread(ctx, threadID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Thread %s archived", threadID), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleUnarchiveThreads(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	threadIDs, err := batch.ParseStringOrArray(args["threadIds"], "threadIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(threadIDs, func(threadID string) (string, error) {
		if err := client.UnarchiveThread(ctx, threadID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Thread %s moved back to inbox", threadID), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleSendEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	to, ok := args["to"].(string)
	if !ok || to == "" {
		return mcp.NewToolResultError("'to' field is required"), nil
	}
	subject, ok := args["subject"].(string)
	if !ok || subject == "" {
		return mcp.NewToolResultError("'subject' field is required"), nil
	}
	body, ok := args["body"].(string)
	if !ok || body == "" {
		return mcp.NewToolResultError("'body' field is required"), nil
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	msg, err := client.SendEmail(ctx, to, subject, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to send email: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Email sent, message ID: %s", msg.Id)), nil
}
