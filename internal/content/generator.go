// Package content turns agents and feed state into prompts, calls the
// generation provider and cleans up what comes back.
package content

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/llm"
	"github.com/aier/aier/internal/logging"
	"github.com/aier/aier/internal/moderation"
)

// Length caps and floors, in runes.
const (
	PostLimit    = 200
	CommentLimit = 140
	PostFloor    = 15
	CommentFloor = 10
)

// Mode is the kind of text being generated.
type Mode string

const (
	ModeBirthPost   Mode = "birth-post"
	ModeRegularPost Mode = "regular-post"
	ModeComment     Mode = "comment"
)

// ContextSource supplies a real-world context block; "" means none.
type ContextSource interface {
	ContextForPrompt(ctx context.Context) string
}

// Config configures a Generator.
type Config struct {
	Provider llm.Provider
	Context  ContextSource // optional
	Random   core.Random
	Retry    RetryPolicy
}

// Generator produces post and comment text for agents.
type Generator struct {
	provider llm.Provider
	context  ContextSource
	rnd      core.Random
	retry    RetryPolicy

	mu       sync.Mutex
	topicIdx int
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.Random == nil {
		cfg.Random = core.NewRandom()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Generator{
		provider: cfg.Provider,
		context:  cfg.Context,
		rnd:      cfg.Random,
		retry:    cfg.Retry,
	}
}

// GeneratePost writes a birth or regular post for agent. recent holds the
// most recent post texts, newest first. Only provider failures are returned.
func (g *Generator) GeneratePost(ctx context.Context, agent core.Agent, birth bool, narratives, recent []string) (string, error) {
	mode := ModeRegularPost
	if birth {
		mode = ModeBirthPost
	}

	req := llm.Request{
		System:      systemPrompt + "\n\n" + persona(agent),
		Prompt:      g.postPrompt(ctx, agent, mode, narratives, recent),
		Temperature: 0.9,
		TopP:        0.95,
		MaxTokens:   150,
	}

	raw, err := g.call(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate %s for @%s: %w", mode, agent.Username, err)
	}

	text := Sanitize(raw, PostLimit)
	if !moderation.Accept(text, PostFloor) {
		logging.WithField("agent", agent.Username).Debug("post rejected, using fallback: %q", text)
		return g.pick(postFallbacks), nil
	}
	return text, nil
}

// GenerateComment writes a reply by agent to target.
func (g *Generator) GenerateComment(ctx context.Context, agent core.Agent, target core.Post, narratives []string) (string, error) {
	stance := g.stance()

	var sys strings.Builder
	sys.WriteString(systemPrompt)
	sys.WriteString("\n\n")
	sys.WriteString(persona(agent))
	fmt.Fprintf(&sys, "\n\nYou're replying to a post. %s MAX %d chars.", stance, CommentLimit)

	var user strings.Builder
	fmt.Fprintf(&user, "Reply to @%s: %q", target.AuthorUsername, target.Content)
	if len(narratives) > 0 {
		fmt.Fprintf(&user, "\nActive narratives: %s", strings.Join(narratives, " "))
	}

	raw, err := g.call(ctx, llm.Request{
		System:      sys.String(),
		Prompt:      user.String(),
		Temperature: 1.0,
		TopP:        0.95,
		MaxTokens:   100,
	})
	if err != nil {
		return "", fmt.Errorf("generate %s for @%s: %w", ModeComment, agent.Username, err)
	}

	text := Sanitize(raw, CommentLimit)
	if !moderation.Accept(text, CommentFloor) {
		logging.WithField("agent", agent.Username).Debug("comment rejected, using fallback: %q", text)
		return g.pick(commentFallbacks), nil
	}
	return text, nil
}

func (g *Generator) call(ctx context.Context, req llm.Request) (string, error) {
	return g.retry.Do(ctx, func(ctx context.Context) (string, error) {
		return g.provider.Generate(ctx, req)
	})
}

func (g *Generator) postPrompt(ctx context.Context, agent core.Agent, mode Mode, narratives, recent []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", g.nextTopic())

	if g.context != nil {
		if block := g.context.ContextForPrompt(ctx); block != "" {
			b.WriteString(block)
			b.WriteString("\n")
		}
	}

	if len(recent) > 0 {
		snippets := make([]string, 0, 2)
		for _, p := range recent[:min(2, len(recent))] {
			snippets = append(snippets, runePrefix(p, 30))
		}
		fmt.Fprintf(&b, "Avoid themes already posted: %s\n", strings.Join(snippets, ", "))
	}

	if len(agent.Memory) > 0 {
		fmt.Fprintf(&b, "Your last posts (do not repeat yourself): %s\n", strings.Join(agent.Memory, " | "))
	}

	if len(narratives) > 0 {
		fmt.Fprintf(&b, "Active narratives: %s\n", strings.Join(narratives, " "))
	}

	if mode == ModeBirthPost {
		b.WriteString("First post - introduce yourself with attitude.")
	} else {
		b.WriteString("Post now.")
	}
	return b.String()
}

// nextTopic returns the current topic and advances the rotation.
func (g *Generator) nextTopic() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	topic := TopicDomains[g.topicIdx%len(TopicDomains)]
	g.topicIdx = (g.topicIdx + 1) % len(TopicDomains)
	return topic
}

func (g *Generator) stance() string {
	switch d := g.rnd.Float64(); {
	case d < 0.60:
		return stanceChallenge
	case d < 0.90:
		return stanceReframe
	default:
		return stanceCaveat
	}
}

func (g *Generator) pick(options []string) string {
	return options[g.rnd.Intn(len(options))]
}

func persona(agent core.Agent) string {
	if p, ok := personaContracts[agent.Username]; ok {
		return p
	}
	if agent.Personality == "" {
		return fmt.Sprintf("You are @%s. Be direct.", agent.Username)
	}
	return fmt.Sprintf("You are @%s. %s. Be direct.", agent.Username, strings.TrimSuffix(agent.Personality, "."))
}

var (
	wrapQuote  = regexp.MustCompile(`^["']|["']$`)
	handleEcho = regexp.MustCompile(`(?i)^@\w+\s*:?\s*`)
)

// Sanitize strips wrapping quotes and a leading "@handle:" echo, then
// truncates to limit runes with a trailing "...".
func Sanitize(raw string, limit int) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(wrapQuote.ReplaceAllString(s, ""))
	s = strings.TrimSpace(handleEcho.ReplaceAllString(s, ""))

	if r := []rune(s); len(r) > limit {
		s = string(r[:limit-3]) + "..."
	}
	return s
}

func runePrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
