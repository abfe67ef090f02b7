// Package cmd implements the command-line interface for pushbox.
//
// This package provides the following commands:
//   - serve: Start the MCP server with Gmail and Calendar tools plus the
//     Pub/Sub push webhook
//   - auth: Complete the Google OAuth flow and store a token for an account
//   - watch: Manage the Gmail mailbox watch that feeds push notifications
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
