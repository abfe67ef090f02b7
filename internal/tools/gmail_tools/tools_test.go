package gmail_tools

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/pushbox/internal/server"
)

func newToolContext(t *testing.T, readOnly bool) *server.ServerContext {
	t.Helper()

	sc := server.NewServerContext(context.Background(), server.ContextConfig{
		ReadOnly: readOnly,
	})
	t.Cleanup(sc.Shutdown)
	return sc
}

func requestWithArgs(args map[string]interface{}) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	return request
}

func TestRegisterGmailTools(t *testing.T) {
	s := mcpserver.NewMCPServer("pushbox", "test")
	require.NoError(t, RegisterGmailTools(s, newToolContext(t, false)))
}

func TestRegisterGmailToolsReadOnly(t *testing.T) {
	s := mcpserver.NewMCPServer("pushbox", "test")
	require.NoError(t, RegisterGmailTools(s, newToolContext(t, true)))
}

func TestHandleListThreadsRequiresQuery(t *testing.T) {
	sc := newToolContext(t, false)

	result, err := handleListThreads(context.Background(), requestWithArgs(map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGetThreadRequiresThreadID(t *testing.T) {
	sc := newToolContext(t, false)

	result, err := handleGetThread(context.Background(), requestWithArgs(map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleSendEmailRequiresFields(t *testing.T) {
	sc := newToolContext(t, false)

	for _, args := range []map[string]interface{}{
		{},
		{"to": "a@x.com"},
		{"to": "a@x.com", "subject": "hi"},
	} {
		result, err := handleSendEmail(context.Background(), requestWithArgs(args), sc)
		require.NoError(t, err)
		assert.True(t, result.IsError)
	}
}

func TestHandleArchiveThreadsRejectsBadInput(t *testing.T) {
	sc := newToolContext(t, false)

	result, err := handleArchiveThreads(context.Background(), requestWithArgs(map[string]interface{}{
		"threadIds": 42,
	}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandlersReportMissingCredentials(t *testing.T) {
	sc := newToolContext(t, false)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	result, err := handleGetMessage(context.Background(), requestWithArgs(map[string]interface{}{
		"messageId": "m1",
		"account":   "nobody",
	}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
