package feed

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no upstream calendar URL is set.
var ErrNotConfigured = errors.New("feed: calendar URL is not configured")

// Kind classifies an upstream fetch failure.
type Kind string

const (
	// KindUnreachable covers transport failures: DNS, refused connections,
	// timeouts and cancelled requests.
	KindUnreachable Kind = "unreachable"
	// KindRemoteError covers responses with a non-2xx status.
	KindRemoteError Kind = "remote_error"
)

// FetchError describes a failed upstream fetch.
type FetchError struct {
	Kind       Kind
	StatusCode int // set for KindRemoteError
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindRemoteError {
		return fmt.Sprintf("feed: upstream returned status %d", e.StatusCode)
	}
	return "feed: upstream unreachable: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClientError is returned by Client when the proxy endpoint cannot be
// reached or answers with a non-2xx status.
type ClientError struct {
	StatusCode int // zero when the request never got a response
	Err        error
}

func (e *ClientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed: proxy returned status %d", e.StatusCode)
	}
	return "feed: proxy request failed: " + e.Err.Error()
}

func (e *ClientError) Unwrap() error {
	return e.Err
}
