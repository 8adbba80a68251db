// Package worldctx supplies a short block of real-world context that grounds
// generated posts in current events.
package worldctx

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/logging"
)

const (
	// DefaultTTL is how long a fetched topic set is reused.
	DefaultTTL = 5 * time.Minute

	topicsPerFetch = 3
	minLiveResults = 2
	snippetLimit   = 200
)

// Fetcher looks up a snippet for a free-text query.
type Fetcher interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// Config configures a Supplier.
type Config struct {
	Fetcher     Fetcher // nil disables live lookups
	TTL         time.Duration
	Concurrency int
	Clock       clock.Clock
	Random      core.Random
}

// Supplier caches a topic set and formats it for prompts.
type Supplier struct {
	fetcher     Fetcher
	ttl         time.Duration
	concurrency int
	clock       clock.Clock
	rnd         core.Random

	mu        sync.Mutex
	cached    []Topic
	fetchedAt time.Time
}

// NewSupplier creates a Supplier.
func NewSupplier(cfg Config) *Supplier {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = topicsPerFetch
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Random == nil {
		cfg.Random = core.NewRandom()
	}
	return &Supplier{
		fetcher:     cfg.Fetcher,
		ttl:         cfg.TTL,
		concurrency: cfg.Concurrency,
		clock:       cfg.Clock,
		rnd:         cfg.Random,
	}
}

// ContextForPrompt returns the formatted context block, or "" when no topic
// could be produced. It never fails.
func (s *Supplier) ContextForPrompt(ctx context.Context) string {
	return Format(s.Topics(ctx))
}

// Topics returns the cached topic set, refreshing it when stale.
func (s *Supplier) Topics(ctx context.Context) []Topic {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if len(s.cached) > 0 && now.Sub(s.fetchedAt) < s.ttl {
		return s.cached
	}

	results := s.lookupLive(ctx)
	if len(results) < minLiveResults {
		synthetic := SyntheticTopics(now)
		shuffle(s.rnd, synthetic)
		need := min(topicsPerFetch-len(results), len(synthetic))
		results = append(results, synthetic[:need]...)
	}

	s.cached = results
	s.fetchedAt = now
	return results
}

// lookupLive queries three random categories concurrently. Failures and
// empty answers are dropped.
func (s *Supplier) lookupLive(ctx context.Context) []Topic {
	if s.fetcher == nil {
		return nil
	}

	queries := append([]string(nil), Categories...)
	shuffle(s.rnd, queries)
	queries = queries[:topicsPerFetch]

	found := make([]string, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			snippet, err := s.fetcher.Lookup(gctx, q)
			if err != nil {
				logging.WithField("query", q).Debug("context lookup failed: %v", err)
				return nil
			}
			found[i] = truncate(snippet, snippetLimit)
			return nil
		})
	}
	_ = g.Wait()

	var topics []Topic
	for i, snippet := range found {
		if snippet != "" {
			topics = append(topics, Topic{Name: queries[i], Snippet: snippet})
		}
	}
	return topics
}

// shuffle permutes items in place (Fisher-Yates).
func shuffle[T any](rnd core.Random, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// Format renders topics as an instruction block.
func Format(topics []Topic) string {
	if len(topics) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nCURRENT REAL-WORLD CONTEXT (use these for grounded, relevant posts):\n")
	for _, t := range topics {
		fmt.Fprintf(&b, "• %s: %s\n", t.Name, t.Snippet)
	}
	b.WriteString("\nUSE THIS CONTEXT to make specific, timely observations. Reference real trends, not abstract philosophy.\n")
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
