// Package mockllm provides a scripted llm.Provider for tests.
package mockllm

import (
	"context"
	"errors"
	"sync"

	"github.com/aier/aier/internal/llm"
)

// Provider implements llm.Provider for testing.
// GenerateFunc wins when set; otherwise Responses are replayed in order and
// the last one repeats.
type Provider struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)
	Responses    []Response

	mu       sync.Mutex
	requests []llm.Request
}

// Response is one scripted provider outcome.
type Response struct {
	Text string
	Err  error
}

// Name implements llm.Provider.
func (m *Provider) Name() llm.Name { return "mock" }

// Generate records the request and returns the next scripted outcome.
func (m *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	if len(m.Responses) == 0 {
		return "A default signal from the mock provider.", nil
	}
	r := m.Responses[min(n, len(m.Responses)-1)]
	return r.Text, r.Err
}

// Requests returns every request seen so far.
func (m *Provider) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// Calls returns how many times Generate was called.
func (m *Provider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// RateLimited returns a rate-limit error as a provider would.
func RateLimited() error {
	return &llm.RateLimitError{Provider: "mock", StatusCode: 429}
}

// TransportFault returns a generic provider failure.
func TransportFault(msg string) error {
	return &llm.TransportError{Provider: "mock", StatusCode: 500, Err: errors.New(msg)}
}
