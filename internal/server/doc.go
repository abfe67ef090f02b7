// Package server hosts the MCP server over stdio or HTTP.
//
// The HTTP transport authenticates MCP requests with Google bearer tokens
// and additionally mounts the Pub/Sub push webhook. The webhook route sits
// outside the OAuth middleware: push deliveries authenticate with a Google
// service account token verified by the webhook pipeline itself.
//
// Health endpoints for Kubernetes probes and a dedicated Prometheus metrics
// server round out the operational surface.
package server
