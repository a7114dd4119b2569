// internal/dex/raydium/errors.go
package raydium

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRouteNotFound is returned when the retry budget for a missing route is spent.
	ErrRouteNotFound = errors.New("route not found")
	// ErrOpensAfterDeadline means the pool opens later than the attempt is allowed to live.
	ErrOpensAfterDeadline = errors.New("pool opens after attempt deadline")
	// ErrNotYetOpenLoop is returned when the API keeps reporting an open time already in the past.
	ErrNotYetOpenLoop = errors.New("pool reported as not yet open too many times")
)

// QuoteError is a hard failure from the trade API: transport, status, decoding or an
// unexpected message.
type QuoteError struct {
	Op     string
	Status int
	Msg    string
	Err    error
}

func (e *QuoteError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("raydium %s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("raydium %s: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("raydium %s: status %d: %s", e.Op, e.Status, e.Msg)
	default:
		return fmt.Sprintf("raydium %s: %s", e.Op, e.Msg)
	}
}

func (e *QuoteError) Unwrap() error { return e.Err }

// notYetOpenError signals the pool exists but trading starts at OpenAt.
type notYetOpenError struct {
	OpenAt time.Time
}

func (e *notYetOpenError) Error() string {
	return fmt.Sprintf("pool not open until %s", e.OpenAt.Format(time.RFC3339))
}

// IsHardFailure reports whether err came out of the quote client as a non-retryable failure.
func IsHardFailure(err error) bool {
	var qe *QuoteError
	return errors.As(err, &qe) || errors.Is(err, ErrRouteNotFound) ||
		errors.Is(err, ErrOpensAfterDeadline) || errors.Is(err, ErrNotYetOpenLoop)
}
