package gmail

import (
	"time"

	gmail "google.golang.org/api/gmail/v1"
)

// Profile describes the authenticated mailbox.
type Profile struct {
	EmailAddress  string `json:"emailAddress"`
	HistoryID     string `json:"historyId"`
	MessagesTotal int64  `json:"messagesTotal"`
	ThreadsTotal  int64  `json:"threadsTotal"`
}

// MessageSummary is a reduced view of a message: routing headers plus the
// snippet Gmail computes.
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Date     string `json:"date,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// WatchInfo describes an active mailbox watch registration.
type WatchInfo struct {
	HistoryID  string    `json:"historyId"`
	Expiration time.Time `json:"expiration"`
}

func toProfile(p *gmail.Profile) *Profile {
	return &Profile{
		EmailAddress:  p.EmailAddress,
		HistoryID:     formatHistoryID(p.HistoryId),
		MessagesTotal: p.MessagesTotal,
		ThreadsTotal:  p.ThreadsTotal,
	}
}

func toMessageSummary(m *gmail.Message) *MessageSummary {
	summary := &MessageSummary{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Snippet:  m.Snippet,
	}
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			switch h.Name {
			case "From":
				summary.From = h.Value
			case "To":
				summary.To = h.Value
			case "Subject":
				summary.Subject = h.Value
			case "Date":
				summary.Date = h.Value
			}
		}
	}
	return summary
}
