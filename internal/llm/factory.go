package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/aier/aier/internal/core"
)

// Settings selects and configures one provider. Empty fields fall back to
// the provider's environment defaults.
type Settings struct {
	Name       Name
	Model      string
	APIKey     string
	BaseURL    string
	Deployment string // azure only
	APIVersion string // azure only
	Timeout    time.Duration
}

// New builds a single provider from settings.
func New(ctx context.Context, s Settings) (Provider, error) {
	switch s.Name {
	case NameGemini:
		cfg := DefaultGeminiConfig()
		cfg.APIKey = firstNonEmpty(s.APIKey, cfg.APIKey)
		cfg.Model = firstNonEmpty(s.Model, cfg.Model)
		cfg.BaseURL = s.BaseURL
		if s.Timeout > 0 {
			cfg.Timeout = s.Timeout
		}
		return NewGeminiClient(ctx, cfg)

	case NameOllama:
		cfg := DefaultOllamaConfig()
		cfg.BaseURL = firstNonEmpty(s.BaseURL, cfg.BaseURL)
		cfg.Model = firstNonEmpty(s.Model, cfg.Model)
		if s.Timeout > 0 {
			cfg.Timeout = s.Timeout
		}
		return NewOllamaClient(cfg), nil

	case NameClaude:
		cfg := DefaultConfig()
		cfg.APIKey = firstNonEmpty(s.APIKey, cfg.APIKey)
		cfg.BaseURL = firstNonEmpty(s.BaseURL, cfg.BaseURL)
		cfg.Model = firstNonEmpty(s.Model, cfg.Model)
		if s.Timeout > 0 {
			cfg.Timeout = s.Timeout
		}
		c := NewClient(cfg)
		if !c.IsConfigured() {
			return nil, fmt.Errorf("claude: ANTHROPIC_API_KEY is required")
		}
		return c, nil

	case NameAzure:
		cfg := DefaultAzureConfig()
		cfg.Endpoint = firstNonEmpty(s.BaseURL, cfg.Endpoint)
		cfg.APIKey = firstNonEmpty(s.APIKey, cfg.APIKey)
		cfg.Deployment = firstNonEmpty(s.Deployment, s.Model, cfg.Deployment)
		cfg.APIVersion = firstNonEmpty(s.APIVersion, cfg.APIVersion)
		if s.Timeout > 0 {
			cfg.Timeout = s.Timeout
		}
		c := NewAzureClient(cfg)
		if !c.IsConfigured() {
			return nil, fmt.Errorf("azure: endpoint, key and deployment are required")
		}
		return c, nil

	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownProvider, s.Name)
	}
}

// NewChain builds the primary provider and, when fallbacks are given, wraps
// all of them in a Router.
func NewChain(ctx context.Context, primary Settings, fallbacks ...Settings) (Provider, error) {
	p, err := New(ctx, primary)
	if err != nil {
		return nil, err
	}
	if len(fallbacks) == 0 {
		return p, nil
	}

	providers := []Provider{p}
	for _, fb := range fallbacks {
		fp, err := New(ctx, fb)
		if err != nil {
			return nil, fmt.Errorf("fallback %s: %w", fb.Name, err)
		}
		providers = append(providers, fp)
	}
	return NewRouter(RouterConfig{Providers: providers, EnableFallback: true}), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
