package types

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the adapter and stream failure taxonomy. Wrap
// them with fmt.Errorf("...: %w", err) so callers can match via errors.Is.
var (
	// ErrNetworkTimeout means a single adapter call exceeded its deadline.
	ErrNetworkTimeout = errors.New("network timeout")
	// ErrNetworkUnavailable means an adapter call failed and no cached
	// result was available to fall back on.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrAuthenticationFailed means the venue rejected credentials. The
	// venue is disabled for the process lifetime; no automatic retry.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrParse means a single market's payload failed validation. The
	// market is dropped and the catalog walk continues.
	ErrParse = errors.New("parse error")
	// ErrSubscriptionDied means a realtime stream gave up after its
	// maximum reconnect attempts.
	ErrSubscriptionDied = errors.New("subscription died")
	// ErrConfig is fatal at startup.
	ErrConfig = errors.New("config error")
)

// VenueError attaches venue and operation context to an adapter failure.
type VenueError struct {
	Venue Venue
	Op    string
	Err   error
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Venue, e.Op, e.Err)
}

func (e *VenueError) Unwrap() error {
	return e.Err
}

// NewVenueError wraps err with venue and operation context.
func NewVenueError(venue Venue, op string, err error) *VenueError {
	return &VenueError{Venue: venue, Op: op, Err: err}
}
