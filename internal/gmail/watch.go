package gmail

import (
	"context"
	"fmt"
	"time"

	gmail "google.golang.org/api/gmail/v1"
)

// StartWatch registers a mailbox watch publishing change notifications to
// the given Pub/Sub topic. Only INBOX additions are of interest; everything
// else is filtered at the source. Gmail expires watches after about seven
// days, so the returned expiration should drive renewal.
func (c *Client) StartWatch(ctx context.Context, topic string) (*WatchInfo, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	res, err := c.svc.Watch(gmailUser, &gmail.WatchRequest{
		TopicName:           topic,
		LabelIds:            []string{"INBOX"},
		LabelFilterBehavior: "INCLUDE",
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to start mailbox watch: %w", err)
	}

	return &WatchInfo{
		HistoryID:  formatHistoryID(res.HistoryId),
		Expiration: time.UnixMilli(res.Expiration),
	}, nil
}

// StopWatch cancels the active mailbox watch.
func (c *Client) StopWatch(ctx context.Context) error {
	if err := c.svc.Stop(gmailUser).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to stop mailbox watch: %w", err)
	}
	return nil
}
