package xclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pokewatch/internal/metrics"
)

// RecommendedBackoff is how long callers should wait after a 429 when the
// provider gives no reset hint.
const RecommendedBackoff = 15 * time.Minute

// ErrMissingToken is returned when a call is attempted without a bearer token.
var ErrMissingToken = errors.New("X_BEARER_TOKEN not configured")

// NotFoundError means the provider has no account for the handle.
type NotFoundError struct {
	Username string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.Username)
}

// ProviderError is any non-success, non-429 response.
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("x api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// RateLimitedError is a 429. It is kept apart from ProviderError so callers
// can back off instead of retrying.
type RateLimitedError struct {
	Endpoint   string
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("x api %s: rate limited, retry after %s", e.Endpoint, e.RetryAfter)
}

// IsRateLimited reports whether err carries a RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

const maxErrorBody = 4 << 10

// checkStatus converts a non-2xx response into a typed error. The caller
// still owns resp.Body.
func checkStatus(resp *http.Response, endpoint string, now time.Time) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(b))
	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.IncAPIError("rate_limited")
		return &RateLimitedError{Endpoint: endpoint, RetryAfter: retryAfter(resp.Header, now), Body: body}
	}
	metrics.IncAPIError("provider")
	return &ProviderError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: body}
}

// retryAfter reads Retry-After (seconds or HTTP date) or X's
// x-rate-limit-reset (unix seconds).
func retryAfter(h http.Header, now time.Time) time.Duration {
	if ra := h.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(ra); err == nil {
			if d := t.Sub(now); d > 0 {
				return d
			}
		}
	}
	if reset := h.Get("x-rate-limit-reset"); reset != "" {
		if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
			if d := time.Unix(unix, 0).Sub(now); d > 0 {
				return d.Round(time.Second)
			}
		}
	}
	return RecommendedBackoff
}
