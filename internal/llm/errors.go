package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitError is returned when a provider asks the caller to back off.
type RateLimitError struct {
	Provider   Name
	StatusCode int
	RetryAfter time.Duration // zero when the provider gave no hint
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited (status %d), retry after %s", e.Provider, e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited (status %d)", e.Provider, e.StatusCode)
}

// TransportError covers every other failure: network, HTTP status, decoding
// or an empty response.
type TransportError struct {
	Provider   Name
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s transport error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err carries a rate-limit signal.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// RetryAfterHint returns the provider's retry-after hint, if any.
func RetryAfterHint(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

func transportErr(p Name, status int, format string, args ...any) error {
	return &TransportError{Provider: p, StatusCode: status, Err: fmt.Errorf(format, args...)}
}

// statusError classifies a non-200 HTTP response.
func statusError(p Name, resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Provider:   p,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Body:       truncateBody(body),
		}
	}
	return &TransportError{
		Provider:   p,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("API error %d: %s", resp.StatusCode, truncateBody(body)),
	}
}

// parseRetryAfter accepts either delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
