// Package client provides the Instagram web API client used by igdump. Each
// call issues exactly one HTTP request, classifies the response and decodes it
// into typed values. The client never retries.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/igdump/pkg/endpoint"
	"github.com/Sternrassler/igdump/pkg/logging"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igdump_requests_total",
		Help: "Total Instagram API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "igdump_request_duration_seconds",
		Help:    "Instagram API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igdump_errors_total",
		Help: "Total Instagram API errors by class",
	}, []string{"class"})
)

// snippetLimit bounds how much of a response body is logged or embedded in errors.
const snippetLimit = 256

// Client is the Instagram web API client.
type Client struct {
	http     *resty.Client
	resolver endpoint.Resolver
	config   Config
	logger   zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Credential authenticates every request (REQUIRED).
	Credential endpoint.Credential

	// BaseURL overrides scheme and host, e.g. an httptest server URL.
	// Empty means https://www.instagram.com.
	BaseURL string

	// UserAgent is sent when non-empty.
	UserAgent string

	// RequestTimeout bounds a single request. Zero disables the timeout.
	RequestTimeout time.Duration

	// HTTPClient replaces the underlying transport client when set.
	HTTPClient *http.Client
}

// DefaultConfig returns the configuration for the public Instagram host.
func DefaultConfig(cred endpoint.Credential) Config {
	return Config{
		Credential: cred,
	}
}

// New creates a new client. The credential is validated before any request is made.
func New(cfg Config) (*Client, error) {
	if err := cfg.Credential.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credential: %w", err)
	}

	if cfg.RequestTimeout < 0 {
		return nil, fmt.Errorf("request_timeout must be >= 0 (got %s)", cfg.RequestTimeout)
	}

	resolver := endpoint.NewResolver(cfg.Credential)
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("base url must include scheme and host (got %q)", cfg.BaseURL)
		}
		resolver.Scheme = u.Scheme
		resolver.Host = u.Host
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetRetryCount(0)
	if cfg.RequestTimeout > 0 {
		rc.SetTimeout(cfg.RequestTimeout)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	rc.SetHeader("Accept", "application/json")

	return &Client{
		http:     rc,
		resolver: resolver,
		config:   cfg,
		logger:   logging.NewLogger("ig-client"),
	}, nil
}

// Call issues one GET request for ep and returns the JSON body.
//
// Responses with status >= 400 yield *RemoteError, transport failures yield
// *TransportError and bodies that are not valid JSON yield *DecodeError.
func (c *Client) Call(ctx context.Context, ep endpoint.Endpoint, pathParams map[string]string, query url.Values) ([]byte, error) {
	req, err := c.resolver.Resolve(ep, pathParams, query)
	if err != nil {
		return nil, err
	}

	label := string(ep)
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", label).
		Str("url", req.URL).
		Msg("Sending request")

	r := c.http.R().SetContext(ctx)
	for key := range req.Header {
		r.SetHeader(key, req.Header.Get(key))
	}

	resp, err := r.Get(req.URL)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(label, "network_error").Inc()
		c.logger.Warn().Err(err).Str("url", req.URL).Msg("Request failed")
		return nil, &TransportError{URL: req.URL, Err: err}
	}

	status := resp.StatusCode()
	body := resp.Body()
	requestsTotal.WithLabelValues(label, strconv.Itoa(status)).Inc()

	if class := classifyStatus(status); class != "" {
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("url", req.URL).
			Int("status", status).
			Str("error_class", string(class)).
			Str("body", snippet(body)).
			Msg("Unsuccessful response")
		return nil, &RemoteError{StatusCode: status, Class: class, URL: req.URL, Body: body}
	}

	if !gjson.ValidBytes(body) {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().
			Str("url", req.URL).
			Str("body", snippet(body)).
			Msg("Response is not valid JSON")
		return nil, &DecodeError{Endpoint: ep, Reason: "invalid JSON", Body: body}
	}

	return body, nil
}

// GetProfile fetches the web profile of username.
func (c *Client) GetProfile(ctx context.Context, username string) (Profile, error) {
	c.logger.Debug().Str("username", username).Msg("Getting profile")

	body, err := c.Call(ctx, endpoint.ProfileLookup, nil, url.Values{"username": {username}})
	if err != nil {
		return Profile{}, err
	}

	profile, err := decodeProfile(body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return Profile{}, err
	}
	return profile, nil
}

// GetFollowingPage fetches pageSize accounts followed by userID at offset.
func (c *Client) GetFollowingPage(ctx context.Context, userID int64, offset, pageSize int) (Page, error) {
	c.logger.Info().
		Int64("user_id", userID).
		Int("max_id", offset).
		Msg("Getting following page")

	body, err := c.Call(ctx, endpoint.FollowingPage,
		map[string]string{"user_id": strconv.FormatInt(userID, 10)},
		url.Values{
			"count":  {strconv.Itoa(pageSize)},
			"max_id": {strconv.Itoa(offset)},
		},
	)
	if err != nil {
		return Page{}, err
	}

	users, err := decodeFollowing(body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return Page{}, err
	}
	return Page{Offset: offset, Users: users}, nil
}

// classifyStatus maps an HTTP status to an error class. Successful and
// redirect statuses return the empty class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

func snippet(body []byte) string {
	if len(body) > snippetLimit {
		return string(body[:snippetLimit]) + "…"
	}
	return string(body)
}
