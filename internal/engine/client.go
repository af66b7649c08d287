package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// clientOptions holds transport settings shared by every HTTP model client.
type clientOptions struct {
	model       string
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

// Option configures a model client.
type Option func(*clientOptions)

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *clientOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		if url != "" {
			o.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithTimeout bounds each HTTP request to the provider.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithMaxAttempts sets how many times a transient failure is attempted.
// Values below 1 mean a single attempt.
func WithMaxAttempts(n int) Option {
	return func(o *clientOptions) {
		if n < 1 {
			n = 1
		}
		o.maxAttempts = n
	}
}

func newClientOptions(model, baseURL string, opts []Option) clientOptions {
	o := clientOptions{
		model:       model,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 300 * time.Second},
		maxAttempts: 1,
		backoff:     2 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// apiError represents an error from a provider API that may or may not be retryable.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// isRetryable returns true for transient errors (rate limit, server errors).
func (e *apiError) isRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// call runs do up to maxAttempts times with linear backoff, stopping early
// on non-retryable API errors.
func (o clientOptions) call(ctx context.Context, provider string, do func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		result, err := do(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var ae *apiError
		if errors.As(err, &ae) && !ae.isRetryable() {
			return "", fmt.Errorf("%s: %w", provider, err)
		}

		if attempt < o.maxAttempts-1 {
			backoff := time.Duration(attempt+1) * o.backoff
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("%s: %w", provider, lastErr)
}
