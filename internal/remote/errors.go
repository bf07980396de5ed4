package remote

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// Error taxonomy for remote store outcomes. The reconciler branches on
// these: Offline and Timeout on a write are recovered locally by queueing,
// NotFound and Conflict propagate, Server errors queue like Offline.
var (
	ErrOffline  = errors.New("no network path to remote store")
	ErrTimeout  = errors.New("remote call deadline exceeded")
	ErrServer   = errors.New("remote store server error")
	ErrNotFound = errors.New("record not found")
	// ErrConflict is reserved for server-side optimistic locking; today
	// conflicts are resolved client-side by recency and never surfaced.
	ErrConflict = errors.New("remote store reported a conflict")
)

// Recoverable reports whether err is an outcome the write path recovers
// from by falling back to the offline queue.
func Recoverable(err error) bool {
	return errors.Is(err, ErrOffline) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrServer)
}

// classifyTransportError maps a transport-level failure onto the taxonomy.
// Deadline expiry (directly or wrapped in *url.Error) becomes ErrTimeout;
// everything else that never produced an HTTP response is ErrOffline.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return ErrTimeout
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	return ErrOffline
}
