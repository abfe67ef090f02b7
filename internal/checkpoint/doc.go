// Package checkpoint persists the last-acknowledged Gmail history cursor for
// each watched tenant server.
//
// A checkpoint is created when watch registration succeeds for a server and
// is advanced after every processed push delivery. The store is a plain
// last-write-wins key-value mapping: two concurrent deliveries for the same
// server may race on read-then-write, and the broker's retry semantics are
// the recovery mechanism, not application-level locking.
//
// Two backends are provided: an in-memory store for single-instance and test
// use, and a Redis store for horizontally scaled deployments.
package checkpoint
