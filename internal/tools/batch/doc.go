// Package batch provides helpers for tools that accept one or many IDs:
// argument parsing, per-item execution, and aggregated JSON results.
package batch
