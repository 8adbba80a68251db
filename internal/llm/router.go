package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RouterConfig configures the fallback router
type RouterConfig struct {
	// Providers in preference order; the first is primary.
	Providers []Provider

	// EnableFallback moves on to the next provider after a transport fault.
	EnableFallback bool
}

// Router sends requests to an ordered list of providers. A rate-limit
// signal is returned to the caller as is so that backoff stays meaningful.
type Router struct {
	providers      []Provider
	enableFallback bool

	// Stats
	mu    sync.RWMutex
	stats RouterStats
}

// RouterStats tracks router usage
type RouterStats struct {
	Requests         map[Name]int64
	Failures         map[Name]int64
	RateLimited      int64
	FallbackCount    int64
	AverageLatencyMs int64
	total            int64
}

// NewRouter creates a new router
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		providers:      cfg.Providers,
		enableFallback: cfg.EnableFallback,
		stats: RouterStats{
			Requests: make(map[Name]int64),
			Failures: make(map[Name]int64),
		},
	}
}

// Name implements Provider and reports the primary provider.
func (r *Router) Name() Name {
	if len(r.providers) == 0 {
		return ""
	}
	return r.providers[0].Name()
}

// Generate implements Provider.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	if len(r.providers) == 0 {
		return "", &TransportError{Err: errors.New("no providers configured")}
	}

	var lastErr error
	for i, p := range r.providers {
		if i > 0 && !r.enableFallback {
			break
		}

		start := time.Now()
		text, err := p.Generate(ctx, req)
		if err == nil {
			r.record(p.Name(), time.Since(start).Milliseconds(), i > 0)
			return text, nil
		}

		r.recordFailure(p.Name(), err)
		if IsRateLimited(err) || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}

	if len(r.providers) > 1 && r.enableFallback {
		return "", fmt.Errorf("all providers failed: %w", lastErr)
	}
	return "", lastErr
}

func (r *Router) record(name Name, latencyMs int64, fallback bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Requests[name]++
	if fallback {
		r.stats.FallbackCount++
	}

	// Update average latency (simple moving average)
	r.stats.total++
	r.stats.AverageLatencyMs = (r.stats.AverageLatencyMs*(r.stats.total-1) + latencyMs) / r.stats.total
}

func (r *Router) recordFailure(name Name, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Failures[name]++
	if IsRateLimited(err) {
		r.stats.RateLimited++
	}
}

// GetStats returns a copy of router statistics
func (r *Router) GetStats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.stats
	out.Requests = make(map[Name]int64, len(r.stats.Requests))
	for k, v := range r.stats.Requests {
		out.Requests[k] = v
	}
	out.Failures = make(map[Name]int64, len(r.stats.Failures))
	for k, v := range r.stats.Failures {
		out.Failures[k] = v
	}
	return out
}

// Providers returns the configured provider names in order
func (r *Router) Providers() []Name {
	names := make([]Name, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}
