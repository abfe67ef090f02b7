package calendar_tools

import (
	"context"
	"testing"
	"time"

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

func TestRegisterCalendarTools(t *testing.T) {
	s := mcpserver.NewMCPServer("pushbox", "test")
	require.NoError(t, RegisterCalendarTools(s, newToolContext(t, false)))
}

func TestRegisterCalendarToolsReadOnly(t *testing.T) {
	s := mcpserver.NewMCPServer("pushbox", "test")
	require.NoError(t, RegisterCalendarTools(s, newToolContext(t, true)))
}

func TestParseEventTimestamp(t *testing.T) {
	ts, allDay, err := parseEventTimestamp("2026-09-01T10:00:00Z")
	require.NoError(t, err)
	assert.False(t, allDay)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), ts)

	ts, allDay, err = parseEventTimestamp("2026-09-01")
	require.NoError(t, err)
	assert.True(t, allDay)
	assert.Equal(t, 2026, ts.Year())

	_, _, err = parseEventTimestamp("next tuesday")
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	_, _, err := parseRange(map[string]interface{}{})
	assert.Error(t, err)

	_, _, err = parseRange(map[string]interface{}{
		"timeMin": "2026-09-02T00:00:00Z",
		"timeMax": "2026-09-01T00:00:00Z",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after")

	timeMin, timeMax, err := parseRange(map[string]interface{}{
		"timeMin": "2026-09-01T00:00:00Z",
		"timeMax": "2026-09-02T00:00:00Z",
	})
	require.NoError(t, err)
	assert.True(t, timeMax.After(timeMin))
}

func TestCalendarIDFromArgs(t *testing.T) {
	assert.Equal(t, "primary", calendarIDFromArgs(map[string]interface{}{}))
	assert.Equal(t, "team", calendarIDFromArgs(map[string]interface{}{"calendarId": "team"}))
}

func TestHandleGetEventRequiresEventID(t *testing.T) {
	sc := newToolContext(t, false)

	result, err := handleGetEvent(context.Background(), requestWithArgs(map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCreateEventValidation(t *testing.T) {
	sc := newToolContext(t, false)

	for name, args := range map[string]map[string]interface{}{
		"missing summary": {},
		"missing times":   {"summary": "standup"},
		"mixed precision": {"summary": "standup", "start": "2026-09-01", "end": "2026-09-01T11:00:00Z"},
		"garbage start":   {"summary": "standup", "start": "tomorrow", "end": "2026-09-01T11:00:00Z"},
	} {
		result, err := handleCreateEvent(context.Background(), requestWithArgs(args), sc)
		require.NoError(t, err, name)
		assert.True(t, result.IsError, name)
	}
}
