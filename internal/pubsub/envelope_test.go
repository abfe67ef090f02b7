package pubsub

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeData(t *testing.T) {
	payload := []byte(`{"emailAddress":"a@x.com","historyId":150}`)

	tests := []struct {
		name    string
		encoded string
	}{
		{
			name:    "standard alphabet with padding",
			encoded: base64.StdEncoding.EncodeToString(payload),
		},
		{
			name:    "standard alphabet without padding",
			encoded: base64.RawStdEncoding.EncodeToString(payload),
		},
		{
			name:    "url-safe alphabet with padding",
			encoded: base64.URLEncoding.EncodeToString(payload),
		},
		{
			name:    "url-safe alphabet without padding",
			encoded: base64.RawURLEncoding.EncodeToString(payload),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeData(tt.encoded)
			require.NoError(t, err)
			assert.Equal(t, payload, decoded)
		})
	}
}

func TestDecodeDataInvalid(t *testing.T) {
	_, err := DecodeData("not base64 at all!!!")
	assert.Error(t, err)
}

func TestNotificationFromDataBlob(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"a@x.com","historyId":150}`))

	n := PushMessage{Data: data}.Notification()

	assert.Equal(t, "a@x.com", n.EmailAddress)
	assert.Equal(t, "150", n.HistoryID)
}

func TestNotificationStringHistoryID(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"a@x.com","historyId":"150"}`))

	n := PushMessage{Data: data}.Notification()

	assert.Equal(t, "150", n.HistoryID)
}

func TestNotificationAttributeFallback(t *testing.T) {
	tests := []struct {
		name    string
		message PushMessage
		want    Notification
	}{
		{
			name: "no data blob, attributes only",
			message: PushMessage{
				Attributes: map[string]string{
					"emailAddress": "a@x.com",
					"historyId":    "150",
				},
			},
			want: Notification{EmailAddress: "a@x.com", HistoryID: "150"},
		},
		{
			name: "blob missing history, attribute fills the gap",
			message: PushMessage{
				Data: base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"a@x.com"}`)),
				Attributes: map[string]string{
					"historyId": "150",
				},
			},
			want: Notification{EmailAddress: "a@x.com", HistoryID: "150"},
		},
		{
			name: "blob wins over attributes",
			message: PushMessage{
				Data: base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"a@x.com","historyId":150}`)),
				Attributes: map[string]string{
					"emailAddress": "b@x.com",
					"historyId":    "999",
				},
			},
			want: Notification{EmailAddress: "a@x.com", HistoryID: "150"},
		},
		{
			name: "undecodable blob degrades to attributes",
			message: PushMessage{
				Data: "!!not-base64!!",
				Attributes: map[string]string{
					"emailAddress": "a@x.com",
					"historyId":    "150",
				},
			},
			want: Notification{EmailAddress: "a@x.com", HistoryID: "150"},
		},
		{
			name:    "empty envelope yields empty notification",
			message: PushMessage{},
			want:    Notification{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.message.Notification())
		})
	}
}
