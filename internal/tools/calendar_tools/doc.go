// Package calendar_tools registers the Google Calendar MCP tools: listing
// calendars and events, event CRUD, and free/busy queries.
//
// Write tools are not registered when the server runs in read-only mode.
package calendar_tools
