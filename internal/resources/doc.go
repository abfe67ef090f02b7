// Package resources provides MCP resources for exposing user and session data.
// Resources are read-only data sources that MCP clients can fetch, such as
// the authenticated user's Gmail profile and the push sync state of a tenant.
package resources
