package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/buywithme/assistant/internal/logger"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
	// maxErrorBody bounds how much of a failed response is kept for the error message
	maxErrorBody = 2048
	// maxBody bounds successful response bodies
	maxBody = 16 << 20
)

// ErrBodyTooLarge is returned when a successful response exceeds the body limit
var ErrBodyTooLarge = errors.New("response body too large")

// Config holds settings shared by the upstream API adapters
type Config struct {
	// Name labels log lines, e.g. "openai"
	Name string
	// Failure is wrapped into every error returned by Do
	Failure error
	// RequestsPerMinute throttles outgoing requests; zero disables throttling
	RequestsPerMinute int
	Timeout           time.Duration
	MaxAttempts       int
	// RetryDelay is the wait before the second attempt; it doubles afterwards
	RetryDelay time.Duration
	// MaxBodySize bounds successful response bodies, 16 MiB by default
	MaxBodySize int64
	Logger      *zap.Logger
}

// Client sends requests with rate limiting and bounded retries.
// Transport errors, 429 and 5xx responses are retried; other statuses are not.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	name        string
	failure     error
	maxAttempts int
	retryDelay  time.Duration
	maxBodySize int64
	logger      *zap.Logger
	debug       bool
}

// StatusError reports a non-2xx response
type StatusError struct {
	StatusCode int
	Body       string
	failure    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d, body: %s", e.failure, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.failure
}

// New creates a client from cfg, filling in defaults
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	bodySize := cfg.MaxBodySize
	if bodySize <= 0 {
		bodySize = maxBody
	}
	failure := cfg.Failure
	if failure == nil {
		failure = errors.New(cfg.Name + " request failed")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		// rate.Limit is requests per second
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), cfg.RequestsPerMinute/6+1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: limiter,
		name:        cfg.Name,
		failure:     failure,
		maxAttempts: attempts,
		retryDelay:  delay,
		maxBodySize: bodySize,
		logger:      logger.OrNop(cfg.Logger).Named(cfg.Name),
	}
}

// SetDebug enables or disables request/response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// debugLog logs at debug level only when debug mode is enabled
func (c *Client) debugLog(msg string, fields ...zap.Field) {
	if c.debug {
		c.logger.Debug(msg, fields...)
	}
}

// backoff returns the wait before retrying after the given attempt (1-based)
func (c *Client) backoff(attempt int) time.Duration {
	return c.retryDelay * time.Duration(1<<(attempt-1))
}

// RequestFunc builds a fresh request for each attempt
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Do executes the request built by newRequest and returns the body of a 2xx response.
func (c *Client) Do(ctx context.Context, newRequest RequestFunc) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %w", c.failure, err)
			}
		}

		// Wait for rate limiter
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", c.failure, err)
		}

		req, err := newRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		start := time.Now()
		c.debugLog("sending request",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Int("attempt", attempt),
		)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", c.failure, ctx.Err())
			}
			c.logger.Warn("request error", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = fmt.Errorf("%w: %w", c.failure, err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, err := readBody(resp.Body, c.maxBodySize)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("%w: read response: %w", c.failure, err)
			}
			c.debugLog("response received",
				zap.Int("status", resp.StatusCode),
				zap.Int("bytes", len(body)),
				zap.Duration("elapsed", time.Since(start)),
			)
			return body, nil
		}

		body, _ := readLimitedBody(resp.Body, maxErrorBody)
		resp.Body.Close()
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body), failure: c.failure}

		c.logger.Warn("api error",
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)

		// Retry on 429 and 5xx; other client errors are final
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return nil, statusErr
		}
		lastErr = statusErr
	}

	c.logger.Error("all retries failed", zap.Int("attempts", c.maxAttempts), zap.Error(lastErr))
	return nil, lastErr
}

// readLimitedBody reads at most limit bytes from r, dropping the rest
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

// readBody reads all of r and fails instead of truncating past limit
func readBody(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
