package webhook

import (
	"errors"
	"fmt"

	"github.com/teemow/pushbox/internal/pubsub"
)

// ErrMalformed marks a structurally invalid delivery: missing tenant
// headers, an undecodable body, or a tenant whose watch was never
// initialized. Mapped to 400. Distinct from an authentication failure; the
// request came from the broker but cannot be actioned.
var ErrMalformed = errors.New("malformed delivery")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// StatusForError maps a pipeline error to the HTTP status returned to the
// broker. Anything that is neither an authentication failure nor a
// malformed request is treated as transient so the broker retries.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, pubsub.ErrUnauthenticated):
		return 401
	case errors.Is(err, ErrMalformed):
		return 400
	default:
		return 502
	}
}
