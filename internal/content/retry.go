package content

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/aier/aier/internal/llm"
)

// RetryPolicy retries a generation call on rate-limit signals only.
type RetryPolicy struct {
	MaxAttempts    int           // total attempts, including the first
	InitialBackoff time.Duration // doubled after every retry
	Clock          clock.Clock

	// Sleep overrides the wait between attempts.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 3 attempts with backoff starting at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		Clock:          clock.New(),
	}
}

// Do calls fn until it succeeds, fails with a non-rate-limit error, or the
// attempts run out. Exhaustion returns the last rate-limit error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}
		if !llm.IsRateLimited(err) {
			return "", err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		wait := backoff
		if hint := llm.RetryAfterHint(err); hint > wait {
			wait = hint
		}
		if err := p.sleep(ctx, wait); err != nil {
			return "", err
		}
		backoff *= 2
	}
	return "", lastErr
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
