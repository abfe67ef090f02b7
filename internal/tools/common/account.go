package common

import (
	"context"

	"github.com/teemow/pushbox/internal/mcp/oauth"
)

// GetAccountFromArgs resolves the Google account a tool call targets.
//
// Priority order:
//  1. OAuth user email from context (set by the HTTP auth middleware)
//  2. Explicit "account" argument
//  3. "default"
func GetAccountFromArgs(ctx context.Context, args map[string]interface{}) string {
	if userInfo, ok := oauth.GetUserFromContext(ctx); ok && userInfo != nil && userInfo.Email != "" {
		return userInfo.Email
	}

	if account, ok := args["account"].(string); ok && account != "" {
		return account
	}
	return "default"
}
