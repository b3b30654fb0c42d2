package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/deck-tracker/internal/logging"
)

// Policy bounds a single logical fetch: per-attempt timeout, total attempt
// count and the base backoff delay (doubled after each failed attempt).
type Policy struct {
	Retries    int           // total attempts, not additional retries
	RetryDelay time.Duration // backoff base: RetryDelay * 2^attempt
	Timeout    time.Duration // per-attempt timeout
}

// DefaultPolicy returns the standard fetch policy.
func DefaultPolicy() Policy {
	return Policy{
		Retries:    3,
		RetryDelay: 1 * time.Second,
		Timeout:    10 * time.Second,
	}
}

// Request describes one outbound HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// RequestFailedError reports a fetch whose retry budget was exhausted.
type RequestFailedError struct {
	Attempts int
	LastErr  error
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RequestFailedError) Unwrap() error {
	return e.LastErr
}

// IsRateLimited reports whether err is (or wraps) an upstream 429 response.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is (or wraps) an upstream 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client performs rate-limited JSON fetches against one upstream API.
type Client struct {
	http    *http.Client
	limiter *SlidingWindowLimiter
}

// NewClient creates a fetch client. The limiter may be nil when the upstream
// imposes no request rate limit.
func NewClient(limiter *SlidingWindowLimiter) *Client {
	return &Client{
		// Timeouts are applied per attempt via context; the transport-level
		// timeout stays unset so the policy alone bounds latency.
		http:    &http.Client{},
		limiter: limiter,
	}
}

// Do performs the request under the given policy and returns the raw JSON
// body. A body that does not parse as JSON counts as a failed attempt within
// the normal retry budget.
func (c *Client) Do(ctx context.Context, req Request, policy Policy) (json.RawMessage, error) {
	logger := logging.FromContext(ctx)

	if policy.Retries < 1 {
		policy.Retries = 1
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	var lastErr error

	for attempt := 0; attempt < policy.Retries; attempt++ {
		if attempt > 0 {
			delay := policy.RetryDelay << (attempt - 1)
			logger.WithFields(map[string]interface{}{
				"attempt": attempt + 1,
				"max":     policy.Retries,
				"delay":   delay.String(),
				"url":     req.URL,
				"error":   lastErr.Error(),
			}).Warn("Fetch failed, retrying with backoff")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &RequestFailedError{Attempts: attempt, LastErr: ctx.Err()}
			case <-timer.C:
			}
		}

		body, err := c.attempt(ctx, req, policy.Timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}

	return nil, &RequestFailedError{Attempts: policy.Retries, LastErr: lastErr}
}

// attempt performs one rate-limited request with the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, req Request, timeout time.Duration) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.AcquireSlot(ctx); err != nil {
			return nil, err
		}
	}

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("response body is not valid JSON")
	}

	return json.RawMessage(body), nil
}

// GetJSON fetches url and decodes the response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v interface{}, policy Policy) error {
	raw, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url}, policy)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// PostJSON posts payload as JSON to url and decodes the response into v.
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}, v interface{}, policy Policy) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	raw, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    url,
		Header: header,
		Body:   body,
	}, policy)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// truncate caps s at n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
