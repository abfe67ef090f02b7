package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// maxHistoryPages bounds a single enumeration. One push delivery rarely
// covers more than a page; a deep backlog is drained across deliveries via
// the Truncated flag instead of one unbounded walk.
const maxHistoryPages = 10

// ErrStaleHistoryID reports that Gmail no longer recognizes the start
// cursor. Gmail only retains history for a limited window; recovery requires
// re-seeding the cursor, not retrying.
var ErrStaleHistoryID = errors.New("history cursor no longer valid")

// HistoryResult is the outcome of one incremental enumeration.
type HistoryResult struct {
	// MessageIDs are the newly added message IDs, in delivery order,
	// deduplicated.
	MessageIDs []string

	// NewHistoryID is the cursor the walk reached. Equals the start cursor
	// when the mailbox saw no changes.
	NewHistoryID string

	// Truncated reports that the page bound was hit before the history was
	// exhausted. NewHistoryID then covers only the consumed prefix.
	Truncated bool

	// Pages is the number of history pages fetched during the walk.
	Pages int
}

// historyPager abstracts one page fetch of the history API.
type historyPager interface {
	listHistory(ctx context.Context, startHistoryID uint64, pageToken string) (*gmail.ListHistoryResponse, error)
}

func (c *Client) listHistory(ctx context.Context, startHistoryID uint64, pageToken string) (*gmail.ListHistoryResponse, error) {
	req := c.svc.History.List(gmailUser).
		StartHistoryId(startHistoryID).
		HistoryTypes("messageAdded").
		LabelId("INBOX").
		Context(ctx)
	if pageToken != "" {
		req.PageToken(pageToken)
	}
	return req.Do()
}

// EnumerateNewMessages walks the mailbox history forward from startCursor
// and collects the IDs of newly added messages. Only additions are
// considered; label changes and deletions do not produce IDs but still
// advance the cursor.
func (c *Client) EnumerateNewMessages(ctx context.Context, startCursor string) (*HistoryResult, error) {
	return enumerateNewMessages(ctx, c, startCursor)
}

func enumerateNewMessages(ctx context.Context, pager historyPager, startCursor string) (*HistoryResult, error) {
	start, err := strconv.ParseUint(startCursor, 10, 64)
	if err != nil || start == 0 {
		return nil, fmt.Errorf("invalid history cursor %q", startCursor)
	}

	result := &HistoryResult{NewHistoryID: startCursor}
	seen := make(map[string]struct{})

	pageToken := ""
	for page := 0; page < maxHistoryPages; page++ {
		res, err := pager.listHistory(ctx, start, pageToken)
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
				return nil, fmt.Errorf("start cursor %s: %w", startCursor, ErrStaleHistoryID)
			}
			return nil, fmt.Errorf("failed to list history from %s: %w", startCursor, err)
		}
		result.Pages = page + 1

		for _, h := range res.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil || added.Message.Id == "" {
					continue
				}
				if _, dup := seen[added.Message.Id]; dup {
					continue
				}
				seen[added.Message.Id] = struct{}{}
				result.MessageIDs = append(result.MessageIDs, added.Message.Id)
			}
			// Per-record cursors advance the frontier even when the record
			// carried no additions.
			if h.Id != 0 {
				result.NewHistoryID = formatHistoryID(h.Id)
			}
		}

		if res.HistoryId != 0 && res.NextPageToken == "" {
			// The top-level cursor is the mailbox frontier. Only adopt it
			// once the walk is complete; a truncated walk must resume from
			// the last consumed record.
			result.NewHistoryID = formatHistoryID(res.HistoryId)
		}

		if res.NextPageToken == "" {
			return result, nil
		}
		pageToken = res.NextPageToken
	}

	result.Truncated = true
	return result, nil
}

func formatHistoryID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
