// Package musiccast provides a client for the Yamaha Extended Control
// (MusicCast) JSON-over-HTTP API exposed by network receivers.
package musiccast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// APIPath is the path prefix of every device operation
	APIPath = "/YamahaExtendedControl/v1"

	// DefaultUserAgent identifies this client to devices
	DefaultUserAgent = "Stellar-MusicCast/0.1.0 (https://github.com/edumarques81/stellar-musiccast)"

	// DefaultTimeout for HTTP requests. Receivers answer on the LAN or not at all.
	DefaultTimeout = 5 * time.Second

	// DefaultRateLimit is the number of requests per second sent to a single device
	DefaultRateLimit = 10

	// DefaultLanguage for list menus
	DefaultLanguage = "en"
)

// Operation names a remote device operation, e.g. "system/getDeviceInfo".
type Operation string

// Client executes named operations against MusicCast devices.
// A single Client is shared by all devices; requests are paced per address.
type Client struct {
	scheme     string
	userAgent  string
	language   string
	rateLimit  int
	httpClient *http.Client

	mu       sync.Mutex
	limiters map[string]*rateLimiter
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithScheme sets the URL scheme (useful for testing against TLS fakes).
func WithScheme(scheme string) Option {
	return func(c *Client) {
		c.scheme = scheme
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit sets the per-device request rate. Values below 1 disable pacing.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		c.rateLimit = requestsPerSecond
	}
}

// WithLanguage sets the menu language requested from list operations.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// NewClient creates a new MusicCast client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		scheme:    "http",
		userAgent: DefaultUserAgent,
		language:  DefaultLanguage,
		rateLimit: DefaultRateLimit,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiters: make(map[string]*rateLimiter),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// envelope is the part of every reply that carries the result status.
type envelope struct {
	ResponseCode int `json:"response_code"`
}

// Call executes op against the device at address with GET query parameters
// and decodes the reply into out (which may be nil).
func (c *Client) Call(ctx context.Context, address string, op Operation, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, address, op, params, nil, out)
}

// CallJSON executes op with a JSON request body.
func (c *Client) CallJSON(ctx context.Context, address string, op Operation, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, address, op, nil, data, out)
}

func (c *Client) do(ctx context.Context, method, address string, op Operation, params url.Values, body []byte, out any) error {
	if address == "" {
		return ErrEmptyAddress
	}

	if err := c.limiterFor(address).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s://%s%s/%s", c.scheme, address, APIPath, op)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	log.Debug().
		Str("address", address).
		Str("op", string(op)).
		Str("url", reqURL).
		Msg("MusicCast request")

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusTooManyRequests:
		log.Warn().Str("address", address).Msg("MusicCast device rate limit exceeded")
		return ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		log.Warn().Str("address", address).Int("status", resp.StatusCode).Msg("MusicCast temporary error")
		return ErrTemporaryFailure
	default:
		return &StatusError{Op: op, HTTPStatus: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if env.ResponseCode != CodeOK {
		log.Debug().
			Str("address", address).
			Str("op", string(op)).
			Int("code", env.ResponseCode).
			Msg("MusicCast request rejected")
		return &StatusError{Op: op, Code: env.ResponseCode}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// limiterFor returns the pacing limiter of a device, creating it on first use.
func (c *Client) limiterFor(address string) *rateLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[address]
	if !ok {
		l = newRateLimiter(c.rateLimit)
		c.limiters[address] = l
	}
	return l
}

// rateLimiter spaces requests to one device by a fixed interval
type rateLimiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastRequest time.Time
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	var interval time.Duration
	if requestsPerSecond > 0 {
		interval = time.Second / time.Duration(requestsPerSecond)
	}
	return &rateLimiter{
		interval: interval,
	}
}

// Wait blocks until a request can be made
func (r *rateLimiter) Wait(ctx context.Context) error {
	if r.interval == 0 {
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	nextAllowed := r.lastRequest.Add(r.interval)

	if now.Before(nextAllowed) {
		select {
		case <-time.After(nextAllowed.Sub(now)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.lastRequest = time.Now()
	return nil
}
