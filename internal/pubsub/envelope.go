package pubsub

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Attribute keys used as fallbacks when the data blob is missing a field.
const (
	attrEmailAddress = "emailAddress"
	attrHistoryID    = "historyId"
)

// PushRequest is the outer JSON body of a Pub/Sub push delivery.
type PushRequest struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription,omitempty"`
}

// PushMessage is the broker's delivery envelope: an opaque base64 data blob,
// an optional flat attribute map and a publish timestamp.
type PushMessage struct {
	Data        string            `json:"data,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	MessageID   string            `json:"messageId,omitempty"`
	PublishTime string            `json:"publishTime,omitempty"`
}

// Notification is the logical Gmail event extracted from an envelope: the
// watched mailbox and the broker's as-of history cursor. It is a hint of a
// new frontier, not the list of changes itself.
type Notification struct {
	EmailAddress string
	HistoryID    string
}

// notificationData is the decoded shape of the data blob for Gmail watch
// notifications. Gmail publishes historyId as a JSON number; json.Number
// also accepts the string form some brokers emit.
type notificationData struct {
	EmailAddress string      `json:"emailAddress,omitempty"`
	HistoryID    json.Number `json:"historyId,omitempty"`
}

// Notification extracts the Gmail change notification from the envelope.
// Fields from the decoded data blob win; the attribute map fills gaps. An
// undecodable blob is tolerated: the result may be empty, which callers
// treat as "no actionable payload".
func (m PushMessage) Notification() Notification {
	var n Notification

	if m.Data != "" {
		if raw, err := DecodeData(m.Data); err == nil {
			var data notificationData
			if err := json.Unmarshal(raw, &data); err == nil {
				n.EmailAddress = data.EmailAddress
				n.HistoryID = data.HistoryID.String()
			}
		}
	}

	if n.EmailAddress == "" {
		n.EmailAddress = m.Attributes[attrEmailAddress]
	}
	if n.HistoryID == "" {
		n.HistoryID = m.Attributes[attrHistoryID]
	}

	return n
}

// DecodeData decodes a Pub/Sub data blob. The broker documents URL-safe
// base64 but raw-alphabet and unpadded payloads show up in practice, so all
// four variants are accepted.
func DecodeData(s string) ([]byte, error) {
	normalized := strings.TrimRight(s, "=")
	normalized = strings.ReplaceAll(normalized, "+", "-")
	normalized = strings.ReplaceAll(normalized, "/", "_")
	return base64.RawURLEncoding.DecodeString(normalized)
}
