package checkpoint

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no checkpoint has been recorded for a
// server. Callers must treat this as "watch never initialized", not as an
// implicit zero cursor.
var ErrNotFound = errors.New("checkpoint not found")

// keyPrefix namespaces checkpoint keys in shared backends (e.g. Redis).
const keyPrefix = "cursor:"

// Store is the durable mapping from a tenant server name to the last
// history cursor that was successfully processed.
type Store interface {
	// Get returns the stored cursor for the server, or ErrNotFound.
	Get(ctx context.Context, server string) (string, error)

	// Put records the cursor for the server, overwriting any previous value.
	Put(ctx context.Context, server, cursor string) error
}

// Key returns the backend key for a server name.
func Key(server string) string {
	return keyPrefix + server
}
