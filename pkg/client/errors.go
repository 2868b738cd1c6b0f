package client

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/igdump/pkg/endpoint"
)

// Sentinel errors matched by the typed errors through errors.Is.
var (
	// ErrTransport matches every TransportError.
	ErrTransport = errors.New("transport error")

	// ErrRemote matches every RemoteError.
	ErrRemote = errors.New("remote error")

	// ErrDecode matches every DecodeError.
	ErrDecode = errors.New("decode error")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents malformed or unexpected payloads.
	ErrorClassDecode ErrorClass = "decode"
)

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// RemoteError reports an HTTP response with status >= 400.
type RemoteError struct {
	StatusCode int
	Class      ErrorClass
	URL        string
	Body       []byte
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("instagram %s error (status %d) for %s: %s",
			e.Class, e.StatusCode, e.URL, snippet(e.Body))
	}
	return fmt.Sprintf("instagram %s error (status %d) for %s",
		e.Class, e.StatusCode, e.URL)
}

// Is reports whether target is ErrRemote.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// RateLimited reports whether the remote rejected the request for rate limiting.
func (e *RemoteError) RateLimited() bool {
	return e.Class == ErrorClassRateLimit
}

// DecodeError reports a successful response whose payload could not be decoded.
// Body holds the raw payload for diagnosis.
type DecodeError struct {
	Endpoint endpoint.Endpoint
	Reason   string
	Body     []byte
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("decode %s response: %s", e.Endpoint, e.Reason)
	}
	return fmt.Sprintf("decode %s response: %s: %s", e.Endpoint, e.Reason, snippet(e.Body))
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Classify returns the error class of err, or "" if err is not a client error.
func Classify(err error) ErrorClass {
	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		return remote.Class
	case errors.Is(err, ErrTransport):
		return ErrorClassNetwork
	case errors.Is(err, ErrDecode):
		return ErrorClassDecode
	default:
		return ""
	}
}
