// Package endpoint resolves the two Instagram web API endpoints used by igdump
// into fully-qualified requests carrying the session authentication headers.
package endpoint

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Endpoint identifies one logical Instagram API endpoint.
type Endpoint string

const (
	// ProfileLookup returns the web profile of a user by username.
	ProfileLookup Endpoint = "profile_lookup"

	// FollowingPage returns one offset-addressed page of the accounts a user follows.
	FollowingPage Endpoint = "following_page"
)

// Fixed Instagram web API parameters.
const (
	DefaultScheme   = "https"
	DefaultHost     = "www.instagram.com"
	DefaultBasePath = "api/v1/"

	// DefaultAppID is the numeric application id the web client sends.
	DefaultAppID int64 = 936619743392459
)

// Header names sent with every request.
const (
	HeaderCookie = "Cookie"
	HeaderAppID  = "X-Ig-App-Id"
)

// Definition describes the path template and required query parameters of an endpoint.
type Definition struct {
	// Template is the path relative to the base path. Placeholders use {name}.
	Template string

	// RequiredQuery lists query parameters that must be present.
	RequiredQuery []string
}

var definitions = map[Endpoint]Definition{
	ProfileLookup: {
		Template:      "users/web_profile_info/",
		RequiredQuery: []string{"username"},
	},
	FollowingPage: {
		Template:      "friendships/{user_id}/following/",
		RequiredQuery: []string{"count", "max_id"},
	},
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Lookup returns the definition of an endpoint.
func Lookup(ep Endpoint) (Definition, bool) {
	def, ok := definitions[ep]
	return def, ok
}

// Placeholders returns the placeholder names of the endpoint's path template in order.
func (d Definition) Placeholders() []string {
	matches := placeholderPattern.FindAllStringSubmatch(d.Template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Credential is the session used to authenticate every request.
type Credential struct {
	SessionID string
	UserID    int64
}

// CookieHeader formats the credential as the Cookie header value.
func (c Credential) CookieHeader() string {
	return fmt.Sprintf("sessionid=%s; ds_user_id=%d;", c.SessionID, c.UserID)
}

// String implements fmt.Stringer without exposing the session id.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{SessionID: %s, UserID: %d}", redact(c.SessionID), c.UserID)
}

// Validate checks that the credential can authenticate a request.
func (c Credential) Validate() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if c.UserID <= 0 {
		return fmt.Errorf("user id must be positive (got %d)", c.UserID)
	}
	return nil
}

func redact(secret string) string {
	if len(secret) <= 4 {
		return "…"
	}
	return secret[:4] + "…"
}

// Request is a resolved GET request.
type Request struct {
	Endpoint Endpoint
	URL      string
	Header   http.Header
}

// Resolver builds requests against a fixed host.
type Resolver struct {
	Scheme     string
	Host       string
	BasePath   string
	AppID      int64
	Credential Credential
}

// NewResolver returns a resolver for the public Instagram host.
func NewResolver(cred Credential) Resolver {
	return Resolver{
		Scheme:     DefaultScheme,
		Host:       DefaultHost,
		BasePath:   DefaultBasePath,
		AppID:      DefaultAppID,
		Credential: cred,
	}
}

// Resolve formats the endpoint path with pathParams, encodes query and attaches
// the authentication headers.
func (r Resolver) Resolve(ep Endpoint, pathParams map[string]string, query url.Values) (*Request, error) {
	def, ok := Lookup(ep)
	if !ok {
		return nil, &MalformedEndpointError{Endpoint: ep, Reason: "unknown endpoint"}
	}

	formatted := def.Template
	for _, name := range def.Placeholders() {
		value, ok := pathParams[name]
		if !ok || value == "" {
			return nil, &MalformedEndpointError{Endpoint: ep, Placeholder: name, Reason: "missing path parameter"}
		}
		formatted = strings.ReplaceAll(formatted, "{"+name+"}", url.PathEscape(value))
	}

	for _, name := range def.RequiredQuery {
		if query.Get(name) == "" {
			return nil, &MalformedEndpointError{Endpoint: ep, Placeholder: name, Reason: "missing query parameter"}
		}
	}

	p := "/" + path.Join(r.BasePath, formatted)
	if strings.HasSuffix(def.Template, "/") {
		p += "/"
	}

	u := url.URL{
		Scheme:   r.Scheme,
		Host:     r.Host,
		Path:     p,
		RawQuery: query.Encode(),
	}

	header := http.Header{}
	header.Set(HeaderCookie, r.Credential.CookieHeader())
	header.Set(HeaderAppID, strconv.FormatInt(r.AppID, 10))

	return &Request{Endpoint: ep, URL: u.String(), Header: header}, nil
}
