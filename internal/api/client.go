package api

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy parameterizes the retry behavior for transient failures.
// Delays grow geometrically from BaseDelay by Multiplier, capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts including the first (min 1)
	BaseDelay   time.Duration // Delay before the first retry
	Multiplier  float64       // Growth factor per retry
	MaxDelay    time.Duration // Upper bound on a single delay
}

// DefaultRetryPolicy returns the policy used unless overridden.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns the nominal backoff before retry number n (1-based).
// Jitter is applied by the caller.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Client provides access to the Polymarket Gamma REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	limiter  *rate.Limiter
	retry    RetryPolicy
	pageSize int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new Gamma API client.
//
// baseURL is the API root, e.g. "https://gamma-api.polymarket.com".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:   slog.Default(),
		limiter:  rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		retry:    DefaultRetryPolicy(),
		pageSize: 500,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetryPolicy sets the retry configuration.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		c.retry = p
	}
}

// WithRequestSpacing sets the minimum spacing between outbound requests.
// Zero disables rate limiting.
func WithRequestSpacing(d time.Duration) ClientOption {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithPageSize sets the pagination page size.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
