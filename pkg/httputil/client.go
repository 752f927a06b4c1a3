package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/macrolens/backend/pkg/logger"
	"github.com/wonny/macrolens/backend/pkg/redis"
)

// Client is an HTTP client wrapper with retry logic and logging
// ⭐ SSOT: 모든 외부 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient  *http.Client
	logger      *logger.Logger
	retryConfig RetryConfig
	limiter     *rate.Limiter
	quota       *redis.QuotaLimiter
	quotaCfg    *redis.QuotaConfig
}

// RetryConfig holds retry configuration. Only transient failures
// (transport errors, 5xx, 429) are retried; 4xx fail fast.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       float64 // fraction of delay randomized, e.g. 0.2
	Enabled      bool
}

// New creates a new HTTP client with the given per-request timeout
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(log *logger.Logger, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
		retryConfig: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     8 * time.Second,
			Jitter:       0.2,
			Enabled:      true,
		},
	}
}

// WithRetry configures retry behavior
func (c *Client) WithRetry(cfg RetryConfig) *Client {
	c.retryConfig = cfg
	return c
}

// WithRateLimit sets a local token-bucket limiter (requests per second)
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithQuota sets the cross-run quota limiter for this client
func (c *Client) WithQuota(q *redis.QuotaLimiter, cfg redis.QuotaConfig) *Client {
	c.quota = q
	c.quotaCfg = &cfg
	return c
}

// Get performs a GET request with optional headers
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(req)
}

// GetJSON performs a GET request and decodes the JSON body into out.
// Returns the HTTP status code so callers can classify failures.
// A decode failure on a 2xx response is reported as ErrMalformed.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out interface{}) (int, error) {
	resp, err := c.Get(ctx, url, headers)
	if err != nil {
		return 0, err
	}
	return decodeJSON(resp, out)
}

// PostJSON performs a POST with a JSON body and decodes the JSON response
// into out. Same status/ErrMalformed contract as GetJSON.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body interface{}, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	return decodeJSON(resp, out)
}

func decodeJSON(resp *http.Response, out interface{}) (int, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return resp.StatusCode, nil
}

// ErrMalformed marks a response body that could not be decoded.
var ErrMalformed = fmt.Errorf("malformed response body")

// do executes the request with rate limiting, retry and logging
func (c *Client) do(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	url := req.URL.String()
	method := req.Method

	// Local rate limit
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	// Cross-run quota
	if c.quota != nil && c.quotaCfg != nil {
		allowed, remaining, err := c.quota.Allow(req.Context(), *c.quotaCfg)
		if err != nil {
			c.logger.WithError(err).Warn("Quota check failed, proceeding")
		} else if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, c.quotaCfg.Key)
		} else if remaining < 3 {
			c.logger.WithFields(map[string]interface{}{
				"provider":  c.quotaCfg.Key,
				"remaining": remaining,
			}).Warn("Provider quota nearly exhausted")
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    url,
	}).Debug("HTTP request started")

	var resp *http.Response
	var err error
	if c.retryConfig.Enabled {
		resp, err = c.doWithRetry(req)
	} else {
		resp, err = c.httpClient.Do(req)
	}

	duration := time.Since(startTime)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method":   method,
			"url":      url,
			"duration": duration,
			"error":    err.Error(),
		}).Error("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": resp.StatusCode,
		"duration":    duration,
	}).Debug("HTTP request completed")

	return resp, nil
}

// ErrQuotaExceeded marks a request blocked by the provider quota limiter.
var ErrQuotaExceeded = fmt.Errorf("provider quota exceeded")

// doWithRetry executes the request with exponential backoff and jitter
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	delay := c.retryConfig.InitialDelay

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		resp, err = c.httpClient.Do(req)

		// Success, or a non-retryable status
		if err == nil && !IsRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// Last attempt - return whatever we have
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		if resp != nil {
			// Retrying: release the failed response
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
		}

		// Rewind the body for requests that carry one
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", bodyErr)
			}
			req.Body = body
		}

		wait := c.jittered(delay)

		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   wait,
			"url":     req.URL.String(),
		}).Warn("Retrying HTTP request")

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}

		// Exponential backoff
		delay *= 2
		if delay > c.retryConfig.MaxDelay {
			delay = c.retryConfig.MaxDelay
		}
	}

	return resp, err
}

// jittered randomizes the delay so concurrent fetches do not retry in lockstep
func (c *Client) jittered(delay time.Duration) time.Duration {
	if c.retryConfig.Jitter <= 0 {
		return delay
	}
	spread := float64(delay) * c.retryConfig.Jitter
	return delay + time.Duration((rand.Float64()*2-1)*spread)
}

// IsRetryableStatus checks if a status code should be retried
func IsRetryableStatus(statusCode int) bool {
	// Retry on 5xx server errors and 429 Too Many Requests
	return statusCode >= 500 || statusCode == 429
}
