// Package logging provides structured logging helpers built on log/slog.
//
// It defines the canonical attribute keys used across the codebase so that
// log lines from the webhook pipeline, the Google API clients and the MCP
// tools can be correlated, plus small utilities for keeping PII and secrets
// out of log output (email anonymization, token masking).
//
// The Logger interface and SlogAdapter allow packages that only need a
// simple leveled logger to stay decoupled from slog.
package logging
