// Package oauth provides bearer-token authentication for the MCP HTTP
// transport.
//
// Incoming Google access tokens are validated against Google's userinfo
// endpoint and the resulting identity is placed in the request context.
// Validated tokens are persisted in an mcp-oauth token store keyed by the
// user's email address so Google API clients can be built per user.
//
// Deployments behind an upstream aggregator can additionally forward the
// user's Google access token in the X-Google-Access-Token header; see
// ForwardedTokenMiddleware.
package oauth
