package calendar

import (
	"context"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/pushbox/internal/google"
)

// Client wraps the Google Calendar service.
type Client struct {
	svc           *calendar.Service
	account       string
	tokenProvider google.TokenProvider
}

// Account returns the account name this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// HasTokenForAccount checks if a valid OAuth token exists for the specified account.
func HasTokenForAccount(account string) bool {
	return google.HasTokenForAccount(account)
}

// NewClientForAccountWithProvider creates a new Calendar client for a
// specific account. The OAuth token is retrieved from the provided token
// provider.
func NewClientForAccountWithProvider(ctx context.Context, account string, tokenProvider google.TokenProvider) (*Client, error) {
	if tokenProvider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := tokenProvider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	conf := google.GetOAuthConfig()
	client := google.NewHTTPClient(ctx, conf.TokenSource(ctx, token))

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{
		svc:           svc,
		account:       account,
		tokenProvider: tokenProvider,
	}, nil
}

// NewClientForAccount creates a new Calendar client using the default
// file-based token provider.
func NewClientForAccount(ctx context.Context, account string) (*Client, error) {
	return NewClientForAccountWithProvider(ctx, account, google.NewFileTokenProvider())
}

// NewClient creates a new Calendar client for the default account.
func NewClient(ctx context.Context) (*Client, error) {
	return NewClientForAccount(ctx, "default")
}

// ListEvents lists events in a calendar within a time range, expanded to
// single instances and ordered by start time.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, query string) ([]EventSummary, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	if query != "" {
		call = call.Q(query)
	}

	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var summaries []EventSummary
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}

	return summaries, nil
}

// GetEvent retrieves a specific event by ID.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*EventSummary, error) {
	event, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	summary := toEventSummary(event)
	return &summary, nil
}

// CreateEvent creates a new calendar event.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*EventSummary, error) {
	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
	}

	event.Start, event.End = eventTimes(input)

	if len(input.Attendees) > 0 {
		event.Attendees = toAttendees(input.Attendees)
	}
	if len(input.Recurrence) > 0 {
		event.Recurrence = input.Recurrence
	}

	created, err := c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	summary := toEventSummary(created)
	return &summary, nil
}

// UpdateEvent updates an existing calendar event. Zero-valued input fields
// leave the stored field untouched.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, input EventInput) (*EventSummary, error) {
	existing, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get existing event: %w", err)
	}

	if input.Summary != "" {
		existing.Summary = input.Summary
	}
	if input.Description != "" {
		existing.Description = input.Description
	}
	if input.Location != "" {
		existing.Location = input.Location
	}

	start, end := eventTimes(input)
	if !input.Start.IsZero() {
		existing.Start = start
	}
	if !input.End.IsZero() {
		existing.End = end
	}

	if len(input.Attendees) > 0 {
		existing.Attendees = toAttendees(input.Attendees)
	}
	if len(input.Recurrence) > 0 {
		existing.Recurrence = input.Recurrence
	}

	updated, err := c.svc.Events.Update(calendarID, eventID, existing).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	summary := toEventSummary(updated)
	return &summary, nil
}

// DeleteEvent deletes a calendar event.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// ListCalendars lists all calendars accessible to the user.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	list, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	var calendars []CalendarInfo
	for _, entry := range list.Items {
		calendars = append(calendars, toCalendarInfo(entry))
	}

	return calendars, nil
}

// QueryFreeBusy checks availability for calendars in a time range.
func (c *Client) QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]FreeBusyInfo, error) {
	items := make([]*calendar.FreeBusyRequestItem, len(calendarIDs))
	for i, id := range calendarIDs {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}

	query := &calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   items,
	}

	result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	var infos []FreeBusyInfo
	for calID, cal := range result.Calendars {
		info := FreeBusyInfo{Calendar: calID}

		for _, busy := range cal.Busy {
			start, _ := time.Parse(time.RFC3339, busy.Start)
			end, _ := time.Parse(time.RFC3339, busy.End)
			info.Busy = append(info.Busy, TimeRange{Start: start, End: end})
		}
		for _, calErr := range cal.Errors {
			info.Errors = append(info.Errors, calErr.Reason)
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// eventTimes builds start/end from the input. All-day events use Date,
// timed events DateTime with an explicit timezone.
func eventTimes(input EventInput) (start, end *calendar.EventDateTime) {
	if input.AllDay {
		return &calendar.EventDateTime{Date: input.Start.Format(dateOnly)},
			&calendar.EventDateTime{Date: input.End.Format(dateOnly)}
	}

	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	return &calendar.EventDateTime{DateTime: input.Start.Format(time.RFC3339), TimeZone: tz},
		&calendar.EventDateTime{DateTime: input.End.Format(time.RFC3339), TimeZone: tz}
}

func toAttendees(emails []string) []*calendar.EventAttendee {
	attendees := make([]*calendar.EventAttendee, len(emails))
	for i, email := range emails {
		attendees[i] = &calendar.EventAttendee{Email: email}
	}
	return attendees
}
