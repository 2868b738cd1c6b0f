package endpoint

import (
	"errors"
	"fmt"
)

// ErrMalformedEndpoint matches every MalformedEndpointError.
var ErrMalformedEndpoint = errors.New("malformed endpoint")

// MalformedEndpointError reports a request that cannot be built from its
// endpoint template. It indicates a programming error.
type MalformedEndpointError struct {
	Endpoint    Endpoint
	Placeholder string
	Reason      string
}

// Error implements the error interface.
func (e *MalformedEndpointError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("malformed endpoint %s: %s %q", e.Endpoint, e.Reason, e.Placeholder)
	}
	return fmt.Sprintf("malformed endpoint %s: %s", e.Endpoint, e.Reason)
}

// Is reports whether target is ErrMalformedEndpoint.
func (e *MalformedEndpointError) Is(target error) bool {
	return target == ErrMalformedEndpoint
}
