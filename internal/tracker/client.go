// Package tracker is a thin client for the task tracker's REST API.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nhle/mailtask/internal/logging"
)

// Client handles Bearer token authentication, the {"data": ...} envelope,
// outbound rate limiting, and retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outbound requests per second. Zero or less disables
// the limit.
func WithRateLimit(perSec float64) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(perSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the API rooted at baseURL
// (e.g., https://app.asana.com/api/1.0). Requests carry no timeout of
// their own; callers bound them through the context.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		maxRetries: 3,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// payload builds a fresh request body for each attempt, since a consumed
// reader cannot be replayed. It returns the body and its content type.
type payload func() (io.Reader, string, error)

func jsonPayload(body any) payload {
	if body == nil {
		return nil
	}
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(map[string]any{"data": body})
		if err != nil {
			return nil, "", fmt.Errorf("marshaling request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// do is the core HTTP method: it builds the request, handles auth, rate
// limiting with exponential backoff, and unwraps the data envelope into
// result. It returns the next page offset when the API reports one.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body payload,
	result any,
) (string, error) {
	if c.token == "" {
		return "", ErrNoToken
	}
	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		var (
			bodyReader  io.Reader
			contentType string
		)
		if body != nil {
			var err error
			bodyReader, contentType, err = body()
			if err != nil {
				return "", err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return "", fmt.Errorf("reading response body: %w", readErr)
		}

		c.logger.Debug("tracker request",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.Duration(logging.KeyDuration, time.Since(start)),
		)

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", newAPIError(resp.StatusCode, method, path, respBody)
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return "", nil
		}

		env := envelope[json.RawMessage]{}
		if err := json.Unmarshal(respBody, &env); err != nil {
			return "", fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		if err := json.Unmarshal(env.Data, result); err != nil {
			return "", fmt.Errorf("unmarshaling data from %s %s: %w", method, path, err)
		}
		if env.NextPage != nil {
			return env.NextPage.Offset, nil
		}
		return "", nil
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func newAPIError(status int, method, path string, body []byte) *APIError {
	apiErr := &APIError{Status: status, Method: method, Path: path}
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil && len(parsed.Errors) > 0 {
		msgs := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		apiErr.Message = strings.Join(msgs, "; ")
	}
	return apiErr
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
