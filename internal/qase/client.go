package qase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Qase API endpoint.
const DefaultBaseURL = "https://api.qase.io/v1"

// maxErrorBody bounds how much of an error response body is kept on an APIError.
const maxErrorBody = 600

// Client is a high-level client for the Qase API.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	logger      *slog.Logger
	limiter     *rate.Limiter
	maxRetries  int
	initialWait time.Duration
	pagination  Pagination
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient  *http.Client
	logger      *slog.Logger
	timeout     time.Duration
	limiter     *rate.Limiter
	maxRetries  int
	initialWait time.Duration
	pagination  Pagination
}

// New creates a new Client for the given Qase instance.
// The token is sent as the Token header on every request.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("qase: baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{initialWait: 500 * time.Millisecond}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{}
	if cfg.httpClient != nil {
		// shallow copy; the caller's client keeps its own timeout
		c := *cfg.httpClient
		httpClient = &c
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:     baseURL,
		token:       token,
		httpClient:  httpClient,
		logger:      logger,
		limiter:     cfg.limiter,
		maxRetries:  cfg.maxRetries,
		initialWait: cfg.initialWait,
		pagination:  cfg.pagination,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// WithRateLimit throttles outgoing requests to rps requests per second.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *clientConfig) error {
		if rps <= 0 {
			cfg.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		cfg.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithRetry retries transient failures (HTTP 429, 5xx, transport errors) up to
// maxRetries times with exponential backoff starting at initial.
func WithRetry(maxRetries int, initial time.Duration) Option {
	return func(cfg *clientConfig) error {
		if maxRetries < 0 {
			return fmt.Errorf("qase: maxRetries must be >= 0, got %d", maxRetries)
		}
		cfg.maxRetries = maxRetries
		if initial > 0 {
			cfg.initialWait = initial
		}
		return nil
	}
}

// WithPagination selects the pagination mode tried first by ListAll calls.
func WithPagination(p Pagination) Option {
	return func(cfg *clientConfig) error {
		cfg.pagination = p
		return nil
	}
}

// doJSON executes an HTTP request with the JSON-encoded payload and decodes the
// "result" member of the response envelope into dst.
// If the response has an error status, it returns an *APIError.
func (c *Client) doJSON(ctx context.Context, method, url, operation string, payload any, dst any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", operation, err)
		}
	}

	attempt := func() error {
		err := c.roundTrip(ctx, method, url, operation, body, dst)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)

	return backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "API retry", "operation", operation, "wait", wait, "error", err)
	})
}

func (c *Client) roundTrip(ctx context.Context, method, url, operation string, body []byte, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit: %w", operation, err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	if c.token != "" {
		req.Header.Set("Token", c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "API request", "operation", operation, "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", operation, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if decodeErr == nil {
			msg = env.ErrorMessage
		}
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		if msg == "" {
			msg = resp.Status
		}
		return newAPIError(operation, resp.StatusCode, msg, env.ErrorFields, truncate(respBody, maxErrorBody))
	}

	if dst == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: decode response: %w", operation, decodeErr)
	}
	if env.ErrorMessage != "" && !env.Status {
		return newAPIError(operation, resp.StatusCode, env.ErrorMessage, env.ErrorFields, truncate(respBody, maxErrorBody))
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return fmt.Errorf("%s: decode response: empty result", operation)
	}
	if err := json.Unmarshal(env.Result, dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
