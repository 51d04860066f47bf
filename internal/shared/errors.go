package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Upstream errors. ErrStaleAuthorization never leaves the RPC client.
	ErrAuthRejected        = fmt.Errorf("upstream rejected credentials")
	ErrUpstreamForbidden   = fmt.Errorf("upstream forbade the request")
	ErrUpstreamUnreachable = fmt.Errorf("upstream unreachable")
	ErrUpstreamProtocol    = fmt.Errorf("upstream protocol error")
	ErrStaleAuthorization  = fmt.Errorf("stale upstream authorization")
	ErrTorrentNotFound     = fmt.Errorf("torrent not found")

	// Session errors
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrInvalidSecret   = fmt.Errorf("invalid session secret")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsTransient reports whether err is an upstream failure worth retrying on the next poll.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUpstreamUnreachable) || errors.Is(err, ErrUpstreamProtocol)
}
