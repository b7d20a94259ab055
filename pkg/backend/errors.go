package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/spoolhq/spool/pkg/archive"
)

// ErrNoFunctionalBackend is returned by the adapter when every candidate
// backend failed to initialize. It is fatal to the caller.
var ErrNoFunctionalBackend = errors.New("no functional backend available")

// ErrConnectionClosed fails pending stream invocations when the event
// stream disconnects or the backend shuts down.
var ErrConnectionClosed = errors.New("connection closed")

// NotFoundError is returned when a backend reports no conversation for
// the requested id.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "conversation not found"
	}
	return "conversation not found: " + e.ID
}

// TimeoutError is returned when an invocation did not complete within
// its deadline. It is distinct from InvocationError so callers can
// decide whether a retry is worthwhile.
type TimeoutError struct {
	Tool    string
	Elapsed time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Tool, e.Elapsed)
}

// InvocationError wraps a failure of a specific tool call: bad
// arguments, remote 4xx/5xx, or a malformed payload.
type InvocationError struct {
	Tool string
	Err  error
}

func (e InvocationError) Error() string {
	return fmt.Sprintf("invoking %s: %v", e.Tool, e.Err)
}

func (e InvocationError) Unwrap() error { return e.Err }

// SyncStateError is raised when the caching backend determines the local
// data cannot satisfy a query's freshness requirement. It propagates to
// the caller since it changes the meaning of any returned results.
type SyncStateError struct {
	State   archive.SyncState
	Message string
}

func (e SyncStateError) Error() string {
	return fmt.Sprintf("sync state %s: %s", e.State, e.Message)
}
