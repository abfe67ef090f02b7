package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	calendar "google.golang.org/api/calendar/v3"
)

func TestToEventSummary(t *testing.T) {
	event := &calendar.Event{
		Id:          "evt1",
		Summary:     "Team Meeting",
		Description: "Weekly sync",
		Location:    "Room 4",
		Status:      "confirmed",
		Start:       &calendar.EventDateTime{DateTime: "2026-09-01T10:00:00Z"},
		End:         &calendar.EventDateTime{DateTime: "2026-09-01T11:00:00Z"},
		Creator:     &calendar.EventCreator{Email: "creator@x.com"},
		Organizer:   &calendar.EventOrganizer{Email: "organizer@x.com"},
		Attendees: []*calendar.EventAttendee{
			{Email: "a@x.com", ResponseStatus: "accepted"},
			{Email: "b@x.com", ResponseStatus: "needsAction", Optional: true},
		},
	}

	summary := toEventSummary(event)

	assert.Equal(t, "evt1", summary.ID)
	assert.Equal(t, "Team Meeting", summary.Summary)
	assert.Equal(t, "creator@x.com", summary.Creator)
	assert.Equal(t, "organizer@x.com", summary.Organizer)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), summary.Start)
	assert.Equal(t, time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC), summary.End)
	assert.Len(t, summary.Attendees, 2)
	assert.True(t, summary.Attendees[1].Optional)
}

func TestToEventSummaryAllDay(t *testing.T) {
	event := &calendar.Event{
		Id:    "evt2",
		Start: &calendar.EventDateTime{Date: "2026-09-01"},
		End:   &calendar.EventDateTime{Date: "2026-09-02"},
	}

	summary := toEventSummary(event)

	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), summary.Start)
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), summary.End)
}

func TestParseEventTime(t *testing.T) {
	assert.True(t, parseEventTime(nil).IsZero())
	assert.True(t, parseEventTime(&calendar.EventDateTime{}).IsZero())
	assert.True(t, parseEventTime(&calendar.EventDateTime{DateTime: "garbage"}).IsZero())
}

func TestEventTimes(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	t.Run("timed event defaults to UTC", func(t *testing.T) {
		s, e := eventTimes(EventInput{Start: start, End: end})
		assert.Equal(t, "2026-09-01T10:00:00Z", s.DateTime)
		assert.Equal(t, "UTC", s.TimeZone)
		assert.Equal(t, "2026-09-01T11:00:00Z", e.DateTime)
	})

	t.Run("timed event keeps explicit timezone", func(t *testing.T) {
		s, _ := eventTimes(EventInput{Start: start, End: end, TimeZone: "Europe/Berlin"})
		assert.Equal(t, "Europe/Berlin", s.TimeZone)
	})

	t.Run("all-day event uses date only", func(t *testing.T) {
		s, e := eventTimes(EventInput{Start: start, End: end, AllDay: true})
		assert.Equal(t, "2026-09-01", s.Date)
		assert.Empty(t, s.DateTime)
		assert.Equal(t, "2026-09-01", e.Date)
	})
}

func TestToCalendarInfo(t *testing.T) {
	entry := &calendar.CalendarListEntry{
		Id:         "primary-id",
		Summary:    "Work",
		TimeZone:   "Europe/Berlin",
		Primary:    true,
		AccessRole: "owner",
	}

	info := toCalendarInfo(entry)

	assert.Equal(t, "primary-id", info.ID)
	assert.Equal(t, "Work", info.Summary)
	assert.True(t, info.Primary)
	assert.Equal(t, "owner", info.AccessRole)
}

func TestToAttendees(t *testing.T) {
	attendees := toAttendees([]string{"a@x.com", "b@x.com"})
	assert.Len(t, attendees, 2)
	assert.Equal(t, "a@x.com", attendees[0].Email)
}

func TestHasTokenForAccount(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	assert.False(t, HasTokenForAccount(""))
	assert.False(t, HasTokenForAccount("default"))
}
