// Package gmail_tools registers the Gmail MCP tools: listing and reading
// threads and messages, archiving, and sending mail.
//
// Write tools are not registered when the server runs in read-only mode.
package gmail_tools
