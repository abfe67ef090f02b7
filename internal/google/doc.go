// Package google provides OAuth2 authentication and token management for Google APIs.
//
// Tokens can come from per-account files on disk (STDIO transport), from the
// OAuth token store (HTTP transport), or from a bearer token carried on an
// individual request. The TokenProvider interface abstracts over these
// sources so the Gmail and Calendar clients do not care where a token came
// from.
package google
