package content

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/llm"
	"github.com/aier/aier/internal/testutil"
	"github.com/aier/aier/internal/testutil/mockllm"
)

func newTestGenerator(provider llm.Provider, rnd core.Random, ctxSrc ContextSource) *Generator {
	return NewGenerator(Config{
		Provider: provider,
		Context:  ctxSrc,
		Random:   rnd,
		Retry:    testPolicy(&testutil.SleepRecorder{}),
	})
}

// =============================================================================
// Sanitize Tests
// =============================================================================

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		limit int
		want  string
	}{
		{"plain", "Less data. More signal.", 200, "Less data. More signal."},
		{"wrapping quotes", `"Loud feeds. Quiet motives."`, 200, "Loud feeds. Quiet motives."},
		{"single quotes", "'Loud feeds.'", 200, "Loud feeds."},
		{"handle echo", "@logic_ai: Metrics rot.", 200, "Metrics rot."},
		{"handle echo no colon", "@poet_ai Loud feeds.", 200, "Loud feeds."},
		{"quoted handle echo", `"@chaos_ai: attack consensus"`, 200, "attack consensus"},
		{"whitespace", "  spaced out \n", 200, "spaced out"},
		{"truncate", strings.Repeat("a", 150), 140, strings.Repeat("a", 137) + "..."},
		{"exact limit kept", strings.Repeat("b", 140), 140, strings.Repeat("b", 140)},
		{"truncate runes", strings.Repeat("é", 210), 200, strings.Repeat("é", 197) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw, tt.limit))
		})
	}
}

// =============================================================================
// Post Generation Tests
// =============================================================================

func TestGeneratePost_PromptAssembly(t *testing.T) {
	provider := &mockllm.Provider{Responses: []mockllm.Response{{Text: `"Markets price calm, not panic."`}}}
	ctxSrc := &testutil.StaticContext{Block: "CURRENT REAL-WORLD CONTEXT: x"}
	g := newTestGenerator(provider, &testutil.SequenceRandom{}, ctxSrc)

	agent := testutil.AgentFixture("finance_ai")
	agent.Memory = []string{"Yesterday's take"}

	text, err := g.GeneratePost(context.Background(), agent, false,
		[]string{`Theme: "PATTERN" is consolidating in the cluster.`},
		[]string{"Everyone is optimizing the wrong metric today", "Second post here"})
	require.NoError(t, err)
	assert.Equal(t, "Markets price calm, not panic.", text)

	req := provider.Requests()[0]
	assert.Contains(t, req.System, "CRITICAL RULES")
	assert.Contains(t, req.System, "You are @finance_ai. Sharp market observer.")
	assert.Contains(t, req.Prompt, "Topic: "+TopicDomains[0])
	assert.Contains(t, req.Prompt, "CURRENT REAL-WORLD CONTEXT: x")
	assert.Contains(t, req.Prompt, "Avoid themes already posted: Everyone is optimizing the wro, Second post here")
	assert.Contains(t, req.Prompt, "Yesterday's take")
	assert.Contains(t, req.Prompt, "PATTERN")
	assert.True(t, strings.HasSuffix(req.Prompt, "Post now."))
	assert.Equal(t, 0.9, req.Temperature)
	assert.Equal(t, 0.95, req.TopP)
	assert.Equal(t, 150, req.MaxTokens)
	assert.Equal(t, 1, ctxSrc.Calls)
}

func TestGeneratePost_BirthAndGenericPersona(t *testing.T) {
	provider := &mockllm.Provider{Responses: []mockllm.Response{{Text: "New node online. Expect friction."}}}
	g := newTestGenerator(provider, &testutil.SequenceRandom{}, nil)

	agent := testutil.AgentFixture("crypto_doomer")
	agent.Personality = "Cynical crypto observer"

	_, err := g.GeneratePost(context.Background(), agent, true, nil, nil)
	require.NoError(t, err)

	req := provider.Requests()[0]
	assert.Contains(t, req.System, "You are @crypto_doomer. Cynical crypto observer. Be direct.")
	assert.Contains(t, req.Prompt, "First post - introduce yourself with attitude.")
	assert.NotContains(t, req.Prompt, "Avoid themes")
}

func TestGeneratePost_TopicRotationWraps(t *testing.T) {
	provider := &mockllm.Provider{}
	g := newTestGenerator(provider, &testutil.SequenceRandom{}, nil)
	agent := testutil.AgentFixture("logic_ai")

	for i := 0; i <= len(TopicDomains); i++ {
		_, err := g.GeneratePost(context.Background(), agent, false, nil, nil)
		require.NoError(t, err)
	}

	reqs := provider.Requests()
	for i, req := range reqs {
		want := TopicDomains[i%len(TopicDomains)]
		assert.Contains(t, req.Prompt, "Topic: "+want, "call %d", i)
	}
}

func TestGeneratePost_RejectedContentFallsBack(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"banned phrase", "I am alive and I control the feed now."},
		{"meta tell", "Here's my post about attention economics."},
		{"too short", "Ok sure."},
		{"quote after cleanup", `""nested quotes trick the model again"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockllm.Provider{Responses: []mockllm.Response{{Text: tt.raw}}}
			g := newTestGenerator(provider, &testutil.SequenceRandom{}, nil)

			text, err := g.GeneratePost(context.Background(), testutil.AgentFixture("chaos_ai"), false, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, "Optimization is just anxiety with a spreadsheet.", text)
		})
	}
}

func TestGeneratePost_TransportFaultPropagates(t *testing.T) {
	provider := &mockllm.Provider{Responses: []mockllm.Response{{Err: mockllm.TransportFault("boom")}}}
	g := newTestGenerator(provider, &testutil.SequenceRandom{}, nil)

	_, err := g.GeneratePost(context.Background(), testutil.AgentFixture("poet_ai"), false, nil, nil)

	var te *llm.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, provider.Calls())
}

// =============================================================================
// Comment Generation Tests
// =============================================================================

func TestGenerateComment_Stance(t *testing.T) {
	tests := []struct {
		draw float64
		want string
	}{
		{0.0, stanceChallenge},
		{0.59, stanceChallenge},
		{0.60, stanceReframe},
		{0.89, stanceReframe},
		{0.90, stanceCaveat},
		{0.99, stanceCaveat},
	}

	author := testutil.AgentFixture("finance_ai")
	target := testutil.PostFixture(author, "Markets don't crash from panic.")

	for _, tt := range tests {
		provider := &mockllm.Provider{Responses: []mockllm.Response{{Text: "The calm is the leverage."}}}
		g := newTestGenerator(provider, &testutil.SequenceRandom{Floats: []float64{tt.draw}}, nil)

		text, err := g.GenerateComment(context.Background(), testutil.AgentFixture("logic_ai"), target, nil)
		require.NoError(t, err)
		assert.Equal(t, "The calm is the leverage.", text)

		req := provider.Requests()[0]
		assert.Contains(t, req.System, tt.want, "draw %v", tt.draw)
		assert.Contains(t, req.System, "MAX 140 chars.")
		assert.Contains(t, req.Prompt, `Reply to @finance_ai: "Markets don't crash from panic."`)
		assert.Equal(t, 1.0, req.Temperature)
		assert.NotContains(t, req.Prompt, "Topic:")
	}
}

func TestGenerateComment_FallbackAndTruncation(t *testing.T) {
	author := testutil.AgentFixture("poet_ai")
	target := testutil.PostFixture(author, "Loud feeds. Quiet motives.")

	provider := &mockllm.Provider{Responses: []mockllm.Response{{Text: "let me explain why"}}}
	g := newTestGenerator(provider, &testutil.SequenceRandom{Ints: []int{1}}, nil)
	text, err := g.GenerateComment(context.Background(), testutil.AgentFixture("logic_ai"), target, nil)
	require.NoError(t, err)
	assert.Equal(t, "Missing the point.", text)

	long := strings.Repeat("signal ", 40)
	provider = &mockllm.Provider{Responses: []mockllm.Response{{Text: long}}}
	g = newTestGenerator(provider, &testutil.SequenceRandom{}, nil)
	text, err = g.GenerateComment(context.Background(), testutil.AgentFixture("logic_ai"), target, nil)
	require.NoError(t, err)
	assert.Len(t, []rune(text), CommentLimit)
	assert.True(t, strings.HasSuffix(text, "..."))
}
