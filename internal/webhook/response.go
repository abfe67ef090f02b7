package webhook

import (
	"fmt"
	"strings"
)

// Content types understood by the delivery proxy.
const (
	ContentTypeJSON = "json"
	ContentTypeText = "text"
)

// Response is the normalized delivery outcome handed back to the broker's
// proxy layer. ReqResponseCode drives the HTTP status; ProcessData carries
// material destined for the agent orchestrator rather than the broker.
type Response struct {
	ReqResponseCode        int          `json:"reqResponseCode"`
	ReqResponseContent     string       `json:"reqResponseContent"`
	ReqResponseContentType string       `json:"reqResponseContentType,omitempty"`
	ProcessData            *ProcessData `json:"processData,omitempty"`
}

// ProcessData is the orchestrator-facing part of a delivery response.
type ProcessData struct {
	PromptContent string `json:"promptContent,omitempty"`
}

// accepted acknowledges a delivery that produced no new items.
func accepted() *Response {
	return &Response{
		ReqResponseCode:        202,
		ReqResponseContent:     "",
		ReqResponseContentType: ContentTypeText,
	}
}

// acceptedWithItems acknowledges a delivery and hands the orchestrator a
// summary of the new mailbox activity.
func acceptedWithItems(server, mailbox string, messageIDs []string, truncated bool) *Response {
	resp := accepted()
	resp.ProcessData = &ProcessData{
		PromptContent: buildPromptContent(server, mailbox, messageIDs, truncated),
	}
	return resp
}

// buildPromptContent renders the activity summary consumed by the agent
// orchestrator: tenant, mailbox and the ordered new message IDs.
func buildPromptContent(server, mailbox string, messageIDs []string, truncated bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New Gmail activity for server %q", server)
	if mailbox != "" {
		fmt.Fprintf(&b, " (mailbox %s)", mailbox)
	}
	fmt.Fprintf(&b, ": %d new message(s).\n", len(messageIDs))

	b.WriteString("Message IDs in arrival order:\n")
	for i, id := range messageIDs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, id)
	}

	if truncated {
		b.WriteString("More changes may exist beyond this batch; they will arrive with the next notification.\n")
	}

	return b.String()
}
