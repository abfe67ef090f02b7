package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/pushbox/internal/checkpoint"
	"github.com/teemow/pushbox/internal/mcp/oauth"
	"github.com/teemow/pushbox/internal/server"
)

// RegisterResources registers the session resources: the authenticated
// user's Gmail profile and the push sync state for that user's tenant.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	profileResource := mcp.NewResource(
		"user://profile",
		"Current User Profile",
		mcp.WithResourceDescription("Information about the currently authenticated Google account"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleUserProfile(ctx, request, sc)
	})

	syncResource := mcp.NewResource(
		"pushbox://sync",
		"Push Sync State",
		mcp.WithResourceDescription("Watch and history checkpoint state for the current account's tenant"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(syncResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSyncState(ctx, request, sc)
	})

	return nil
}

// extractAccountFromContext returns the authenticated user's email, or
// "default" for STDIO transport where no OAuth context exists.
func extractAccountFromContext(ctx context.Context) string {
	if userInfo, ok := oauth.GetUserFromContext(ctx); ok {
		return userInfo.Email
	}
	return "default"
}

func handleUserProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := extractAccountFromContext(ctx)

	gmailClient := sc.GmailClientForAccount(account)
	if gmailClient == nil {
		return nil, fmt.Errorf("no Gmail client available for account: %s", account)
	}

	profile, err := gmailClient.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	profileData := map[string]interface{}{
		"account":       account,
		"email":         profile.EmailAddress,
		"historyId":     profile.HistoryID,
		"messagesTotal": profile.MessagesTotal,
		"threadsTotal":  profile.ThreadsTotal,
	}

	return marshalResource(request.Params.URI, profileData)
}

// handleSyncState reports whether push sync is armed for the account's
// tenant and which history cursor the next delivery will enumerate from.
func handleSyncState(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := extractAccountFromContext(ctx)

	syncData := map[string]interface{}{
		"account": account,
		"topic":   sc.PubSubTopic(),
	}

	cursor, err := sc.Checkpoints().Get(ctx, account)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		syncData["armed"] = false
	case err != nil:
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	default:
		syncData["armed"] = true
		syncData["historyCursor"] = cursor
	}

	return marshalResource(request.Params.URI, syncData)
}

func marshalResource(uri string, data map[string]interface{}) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
