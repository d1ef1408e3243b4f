// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package google implements geo.Geocoder and geo.Router on the Google Maps
// Geocoding and Distance Matrix web services.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"github.com/poiesic/tutorder/geo"
	"github.com/poiesic/tutorder/retry"
)

const (
	DefaultBaseURL           = "https://maps.googleapis.com"
	DefaultRequestsPerSecond = 10.0
	DefaultTimeout           = 10 * time.Second
	DefaultMaxAttempts       = 3
	DefaultRetryDelay        = 500 * time.Millisecond
)

var (
	ErrMissingAPIKey = errors.New("maps API key required")
	ErrRequestDenied = errors.New("maps request denied")
)

// Client adapts a maps.Client to the geo interfaces, adding request pacing
// and retries. Safe for concurrent use.
type Client struct {
	maps        *maps.Client
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

var (
	_ geo.Geocoder = (*Client)(nil)
	_ geo.Router   = (*Client)(nil)
)

type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps outgoing requests per second, retries included.
// Zero or less disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetry sets how often transient failures are retried.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		c.retryDelay = baseDelay
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		logger:      slog.Default(),
	}
	WithRateLimit(DefaultRequestsPerSecond)(c)
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "google-maps")

	hc := *c.httpClient
	hc.Transport = statusTransport{next: hc.Transport}
	mc, err := maps.NewClient(
		maps.WithAPIKey(apiKey),
		maps.WithBaseURL(c.baseURL),
		maps.WithHTTPClient(&hc))
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}
	c.maps = mc
	return c, nil
}

// Geocode resolves address to the coordinates of the first result.
func (c *Client) Geocode(ctx context.Context, address string) (geo.Coordinates, error) {
	if strings.TrimSpace(address) == "" {
		return geo.Coordinates{}, fmt.Errorf("%w: empty address", geo.ErrNoResult)
	}

	var results []maps.GeocodingResult
	err := c.do(ctx, "geocode", func() (err error) {
		results, err = c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: address})
		return err
	})
	if err != nil {
		if statusOf(err) == "ZERO_RESULTS" {
			return geo.Coordinates{}, fmt.Errorf("%w: %s", geo.ErrNoResult, address)
		}
		return geo.Coordinates{}, err
	}
	if len(results) == 0 {
		return geo.Coordinates{}, fmt.Errorf("%w: %s", geo.ErrNoResult, address)
	}
	loc := results[0].Geometry.Location
	return geo.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// Duration returns the estimated travel time from origin to destination.
func (c *Client) Duration(ctx context.Context, origin, destination geo.Coordinates, mode geo.Mode) (time.Duration, error) {
	req := &maps.DistanceMatrixRequest{
		Origins:      []string{origin.String()},
		Destinations: []string{destination.String()},
		Mode:         travelMode(mode),
	}

	var resp *maps.DistanceMatrixResponse
	err := c.do(ctx, "distancematrix", func() (err error) {
		resp, err = c.maps.DistanceMatrix(ctx, req)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 || resp.Rows[0].Elements[0] == nil {
		return 0, geo.ErrNoRoute
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("%w: %s", geo.ErrNoRoute, el.Status)
	}
	return el.Duration, nil
}

func travelMode(mode geo.Mode) maps.Mode {
	if mode == geo.ModeBicycling {
		return maps.TravelModeBicycling
	}
	return maps.TravelModeTransit
}

// do paces and retries call. Transport failures, 429s, 5xx responses and
// the OVER_QUERY_LIMIT and UNKNOWN_ERROR statuses are retried; everything
// else fails at once.
func (c *Client) do(ctx context.Context, api string, call func() error) error {
	return retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		err := call()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		c.logger.Debug("maps request failed", "api", api, "err", err)
		if transient(err) {
			return err
		}
		if statusOf(err) == "REQUEST_DENIED" {
			return retry.Permanent(fmt.Errorf("%w: %w", ErrRequestDenied, err))
		}
		return retry.Permanent(err)
	}, c.maxAttempts, c.retryDelay)
}

func transient(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	switch statusOf(err) {
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return true
	}
	return false
}

// statusOf extracts the service status from a maps error of the form
// "maps: STATUS - message".
func statusOf(err error) string {
	msg, ok := strings.CutPrefix(err.Error(), "maps: ")
	if !ok {
		return ""
	}
	status, _, _ := strings.Cut(msg, " ")
	return status
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("maps: HTTP %d", e.code)
}

// statusTransport turns non-200 responses into errors, since the maps
// client decodes every body regardless of its status code.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &httpStatusError{code: resp.StatusCode}
	}
	return resp, nil
}
