package anthropic

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// ErrBlocked is returned when the model refuses the prompt on safety grounds.
// Retrying the same prompt cannot change a safety verdict, so callers must
// treat it as terminal.
var ErrBlocked = errors.New("anthropic: response blocked by safety filter")

// RateLimitError signals a 429 from the API. RetryAfter carries the wait the
// service suggested via its retry-after header; zero when none was suggested.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("anthropic: rate limited, retry after %s", e.RetryAfter)
	}
	return "anthropic: rate limited"
}

// classifyError maps SDK errors onto our typed taxonomy using structured
// status codes rather than message text.
func classifyError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfterHint(apiErr.Response)}
	default:
		return err
	}
}

// retryAfterHint parses the retry-after header, supporting both delay-seconds
// and HTTP-date forms. Returns 0 when absent or unparseable.
func retryAfterHint(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("retry-after")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsRateLimited reports whether err carries a rate-limit signal and returns
// any service-suggested wait.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
