package client

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/Sternrassler/igdump/pkg/endpoint"
)

func TestRemoteError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *RemoteError
		expected string
	}{
		{
			name: "error with body",
			err: &RemoteError{
				StatusCode: 404,
				Class:      ErrorClassClient,
				URL:        "https://www.instagram.com/api/v1/users/web_profile_info/?username=x",
				Body:       []byte(`{"status":"fail"}`),
			},
			expected: `instagram client error (status 404) for https://www.instagram.com/api/v1/users/web_profile_info/?username=x: {"status":"fail"}`,
		},
		{
			name: "error without body",
			err: &RemoteError{
				StatusCode: 502,
				Class:      ErrorClassServer,
				URL:        "https://www.instagram.com/x",
			},
			expected: "instagram server error (status 502) for https://www.instagram.com/x",
		},
		{
			name: "rate limit error",
			err: &RemoteError{
				StatusCode: 429,
				Class:      ErrorClassRateLimit,
				URL:        "u",
			},
			expected: "instagram rate_limit error (status 429) for u",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRemoteError_LongBodyTruncated(t *testing.T) {
	err := &RemoteError{StatusCode: 500, Class: ErrorClassServer, URL: "u", Body: []byte(strings.Repeat("x", 1000))}
	if len(err.Error()) > snippetLimit+100 {
		t.Errorf("Error() not truncated: %d bytes", len(err.Error()))
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{URL: "u", Err: io.ErrUnexpectedEOF}

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should work with wrapped error")
	}
	if !errors.Is(err, ErrTransport) {
		t.Error("errors.Is should match ErrTransport")
	}
	if err.Error() != "transport error for u: unexpected EOF" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestDecodeError(t *testing.T) {
	err := &DecodeError{Endpoint: endpoint.ProfileLookup, Reason: "missing data.user object", Body: []byte(`{}`)}

	if !errors.Is(err, ErrDecode) {
		t.Error("errors.Is should match ErrDecode")
	}
	if errors.Is(err, ErrRemote) {
		t.Error("DecodeError must not match ErrRemote")
	}
	if got := err.Error(); got != "decode profile_lookup response: missing data.user object: {}" {
		t.Errorf("Error() = %q", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil", nil, ""},
		{"plain", errors.New("x"), ""},
		{"transport", &TransportError{Err: io.EOF}, ErrorClassNetwork},
		{"remote", &RemoteError{StatusCode: 429, Class: ErrorClassRateLimit}, ErrorClassRateLimit},
		{"decode", &DecodeError{}, ErrorClassDecode},
		{"wrapped remote", fmt.Errorf("page 400: %w", &RemoteError{StatusCode: 500, Class: ErrorClassServer}), ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.expected {
				t.Errorf("Classify() = %q, want %q", got, tt.expected)
			}
		})
	}
}
