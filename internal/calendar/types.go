package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

const dateOnly = "2006-01-02"

// EventInput is the input for creating or updating a calendar event.
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	TimeZone    string
	Attendees   []string
	Recurrence  []string // RRULE, EXRULE, RDATE, EXDATE
}

// EventSummary is a simplified calendar event for listing.
type EventSummary struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Creator     string
	Organizer   string
	Status      string
	Attendees   []AttendeeInfo
}

// AttendeeInfo describes an event attendee.
type AttendeeInfo struct {
	Email          string
	DisplayName    string
	ResponseStatus string // "needsAction", "declined", "tentative", "accepted"
	Optional       bool
	Organizer      bool
}

// CalendarInfo describes a calendar the user can access.
type CalendarInfo struct {
	ID          string
	Summary     string
	Description string
	TimeZone    string
	Primary     bool
	AccessRole  string // "owner", "writer", "reader", "freeBusyReader"
}

// FreeBusyInfo is the availability of one calendar in a queried range.
type FreeBusyInfo struct {
	Calendar string
	Busy     []TimeRange
	Errors   []string
}

// TimeRange is a half-open time interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func toEventSummary(event *calendar.Event) EventSummary {
	summary := EventSummary{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
	}

	summary.Start = parseEventTime(event.Start)
	summary.End = parseEventTime(event.End)

	if event.Creator != nil {
		summary.Creator = event.Creator.Email
	}
	if event.Organizer != nil {
		summary.Organizer = event.Organizer.Email
	}

	for _, att := range event.Attendees {
		summary.Attendees = append(summary.Attendees, AttendeeInfo{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
			Optional:       att.Optional,
			Organizer:      att.Organizer,
		})
	}

	return summary
}

// parseEventTime handles both timed (DateTime) and all-day (Date) events.
func parseEventTime(t *calendar.EventDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse(dateOnly, t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	return CalendarInfo{
		ID:          entry.Id,
		Summary:     entry.Summary,
		Description: entry.Description,
		TimeZone:    entry.TimeZone,
		Primary:     entry.Primary,
		AccessRole:  entry.AccessRole,
	}
}
