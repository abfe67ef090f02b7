package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/pushbox/internal/calendar"
	"github.com/teemow/pushbox/internal/google"
	"github.com/teemow/pushbox/internal/instrumentation"
	"github.com/teemow/pushbox/internal/server"
	"github.com/teemow/pushbox/internal/tools/common"
)

// RegisterCalendarTools registers the Calendar tools. Write tools are
// skipped in read-only mode.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listCalendarsTool := mcp.NewTool("calendar_list_calendars",
		mcp.WithDescription("List the calendars the user can access"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
	)
	s.AddTool(listCalendarsTool, common.Instrumented(sc, "calendar_list_calendars", instrumentation.ServiceCalendar, instrumentation.OperationList,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCalendars(ctx, request, sc)
		}))

	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List events in a time range, optionally filtered by a search query"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Range start in RFC3339 format (e.g. '2026-09-01T00:00:00Z')"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("Range end in RFC3339 format"),
		),
		mcp.WithString("query",
			mcp.Description("Free-text search over event fields"),
		),
	)
	s.AddTool(listEventsTool, common.Instrumented(sc, "calendar_list_events", instrumentation.ServiceCalendar, instrumentation.OperationList,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	getEventTool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get a single calendar event"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to fetch"),
		),
	)
	s.AddTool(getEventTool, common.Instrumented(sc, "calendar_get_event", instrumentation.ServiceCalendar, instrumentation.OperationGet,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEvent(ctx, request, sc)
		}))

	freeBusyTool := mcp.NewTool("calendar_free_busy",
		mcp.WithDescription("Query busy intervals for one or more calendars in a time range"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Range start in RFC3339 format"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("Range end in RFC3339 format"),
		),
		mcp.WithString("calendarIds",
			mcp.Description("Comma-separated calendar IDs (default: 'primary')"),
		),
	)
	s.AddTool(freeBusyTool, common.Instrumented(sc, "calendar_free_busy", instrumentation.ServiceCalendar, instrumentation.OperationGet,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFreeBusy(ctx, request, sc)
		}))

	if sc.ReadOnly() {
		return nil
	}

	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a calendar event"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time in RFC3339 format, or YYYY-MM-DD for all-day events"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time in RFC3339 format, or YYYY-MM-DD for all-day events"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA timezone for timed events (default: UTC)"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated attendee email addresses"),
		),
	)
	s.AddTool(createEventTool, common.Instrumented(sc, "calendar_create_event", instrumentation.ServiceCalendar, instrumentation.OperationCreate,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))

	updateEventTool := mcp.NewTool("calendar_update_event",
		mcp.WithDescription("Update fields of an existing calendar event; omitted fields stay unchanged"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to update"),
		),
		mcp.WithString("summary",
			mcp.Description("New event title"),
		),
		mcp.WithString("description",
			mcp.Description("New event description"),
		),
		mcp.WithString("location",
			mcp.Description("New event location"),
		),
		mcp.WithString("start",
			mcp.Description("New start time in RFC3339 format"),
		),
		mcp.WithString("end",
			mcp.Description("New end time in RFC3339 format"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA timezone for timed events"),
		),
	)
	s.AddTool(updateEventTool, common.Instrumented(sc, "calendar_update_event", instrumentation.ServiceCalendar, instrumentation.OperationUpdate,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateEvent(ctx, request, sc)
		}))

	deleteEventTool := mcp.NewTool("calendar_delete_event",
		mcp.WithDescription("Delete a calendar event"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to delete"),
		),
	)
	s.AddTool(deleteEventTool, common.Instrumented(sc, "calendar_delete_event", instrumentation.ServiceCalendar, instrumentation.OperationDelete,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEvent(ctx, request, sc)
		}))

	return nil
}

func clientForAccount(sc *server.ServerContext, account string) (*calendar.Client, *mcp.CallToolResult) {
	client := sc.CalendarClientForAccount(account)
	if client == nil {
		return nil, mcp.NewToolResultError(google.GetAuthenticationErrorMessage(account))
	}
	return client, nil
}

func calendarIDFromArgs(args map[string]interface{}) string {
	if id, ok := args["calendarId"].(string); ok && id != "" {
		return id
	}
	return "primary"
}

// parseEventTimestamp accepts RFC3339 or a bare date. The second return
// reports whether the value was date-only.
func parseEventTimestamp(value string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid time %q, use RFC3339 or YYYY-MM-DD", value)
}

func parseRange(args map[string]interface{}) (time.Time, time.Time, error) {
	minRaw, _ := args["timeMin"].(string)
	maxRaw, _ := args["timeMax"].(string)
	if minRaw == "" || maxRaw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("timeMin and timeMax are required")
	}

	timeMin, _, err := parseEventTimestamp(minRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	timeMax, _, err := parseEventTimestamp(maxRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !timeMax.After(timeMin) {
		return time.Time{}, time.Time{}, fmt.Errorf("timeMax must be after timeMin")
	}
	return timeMin, timeMax, nil
}

func formatEvent(event calendar.EventSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Event %s: %s\n", event.ID, event.Summary)
	fmt.Fprintf(&sb, "  When: %s - %s\n", event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339))
	if event.Location != "" {
		fmt.Fprintf(&sb, "  Where: %s\n", event.Location)
	}
	if event.Status != "" {
		fmt.Fprintf(&sb, "  Status: %s\n", event.Status)
	}
	for _, attendee := range event.Attendees {
		fmt.Fprintf(&sb, "  Attendee: %s (%s)\n", attendee.Email, attendee.ResponseStatus)
	}
	return sb.String()
}

func handleListCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list calendars: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d calendars:\n", len(calendars))
	for i, cal := range calendars {
		marker := ""
		if cal.Primary {
			marker = " (primary)"
		}
		fmt.Fprintf(&sb, "%d. %s: %s%s [%s]\n", i+1, cal.ID, cal.Summary, marker, cal.AccessRole)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	timeMin, timeMax, err := parseRange(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, _ := args["query"].(string)

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	events, err := client.ListEvents(ctx, calendarIDFromArgs(args), timeMin, timeMax, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list events: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d events:\n", len(events))
	for _, event := range events {
		sb.WriteString(formatEvent(event))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	event, err := client.GetEvent(ctx, calendarIDFromArgs(args), eventID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get event: %v", err)), nil
	}

	return mcp.NewToolResultText(formatEvent(*event)), nil
}

func handleFreeBusy(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	timeMin, timeMax, err := parseRange(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	calendarIDs := []string{"primary"}
	if raw, ok := args["calendarIds"].(string); ok && raw != "" {
		calendarIDs = nil
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				calendarIDs = append(calendarIDs, id)
			}
		}
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	infos, err := client.QueryFreeBusy(ctx, timeMin, timeMax, calendarIDs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to query free/busy: %v", err)), nil
	}

	var sb strings.Builder
	for _, info := range infos {
		fmt.Fprintf(&sb, "Calendar %s:\n", info.Calendar)
		if len(info.Busy) == 0 {
			sb.WriteString("  free for the whole range\n")
		}
		for _, busy := range info.Busy {
			fmt.Fprintf(&sb, "  busy %s - %s\n", busy.Start.Format(time.RFC3339), busy.End.Format(time.RFC3339))
		}
		for _, reason := range info.Errors {
			fmt.Fprintf(&sb, "  error: %s\n", reason)
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	summary, ok := args["summary"].(string)
	if !ok || summary == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}
	startRaw, _ := args["start"].(string)
	endRaw, _ := args["end"].(string)
	if startRaw == "" || endRaw == "" {
		return mcp.NewToolResultError("start and end are required"), nil
	}

	start, startAllDay, err := parseEventTimestamp(startRaw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, endAllDay, err := parseEventTimestamp(endRaw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if startAllDay != endAllDay {
		return mcp.NewToolResultError("start and end must both be timestamps or both be dates"), nil
	}

	input := calendar.EventInput{
		Summary: summary,
		Start:   start,
		End:     end,
		AllDay:  startAllDay,
	}
	input.Description, _ = args["description"].(string)
	input.Location, _ = args["location"].(string)
	input.TimeZone, _ = args["timeZone"].(string)
	if raw, ok := args["attendees"].(string); ok && raw != "" {
		for _, email := range strings.Split(raw, ",") {
			if email = strings.TrimSpace(email); email != "" {
				input.Attendees = append(input.Attendees, email)
			}
		}
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	event, err := client.CreateEvent(ctx, calendarIDFromArgs(args), input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create event: %v", err)), nil
	}

	return mcp.NewToolResultText("Created:\n" + formatEvent(*event)), nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	var input calendar.EventInput
	input.Summary, _ = args["summary"].(string)
	input.Description, _ = args["description"].(string)
	input.Location, _ = args["location"].(string)
	input.TimeZone, _ = args["timeZone"].(string)

	if raw, ok := args["start"].(string); ok && raw != "" {
		start, allDay, err := parseEventTimestamp(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		input.Start = start
		input.AllDay = allDay
	}
	if raw, ok := args["end"].(string); ok && raw != "" {
		end, _, err := parseEventTimestamp(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		input.End = end
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	event, err := client.UpdateEvent(ctx, calendarIDFromArgs(args), eventID, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update event: %v", err)), nil
	}

	return mcp.NewToolResultText("Updated:\n" + formatEvent(*event)), nil
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	client, errResult := clientForAccount(sc, account)
	if errResult != nil {
		return errResult, nil
	}

	if err := client.DeleteEvent(ctx, calendarIDFromArgs(args), eventID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete event: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Event %s deleted", eventID)), nil
}
