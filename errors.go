package flagship

import (
	"errors"
	"fmt"
)

var (
	// ErrClientClosed is returned by operations on a closed Client.
	ErrClientClosed = errors.New("flagship: client is closed")
	// ErrInvalidContext indicates an evaluation context without an entity
	// id. Deterministic bucketing needs a stable identity to hash.
	ErrInvalidContext = errors.New("flagship: evaluation context requires an entity id")
	// ErrNotReady indicates no snapshot has been loaded yet.
	ErrNotReady = errors.New("flagship: no snapshot available yet")
	// ErrNoUpstream is returned by Refresh on a bundle-only client.
	ErrNoUpstream = errors.New("flagship: no upstream URL configured")
)

// FetchError describes a failed snapshot fetch surfaced through Refresh.
// Background sync failures never produce one; they are retried silently.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("flagship: fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("flagship: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
