package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiClient generates text through the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiConfig for the Gemini client
type GeminiConfig struct {
	APIKey  string
	Model   string        // default: gemini-2.5-flash
	BaseURL string        // optional endpoint override
	Timeout time.Duration // HTTP client timeout
}

// DefaultGeminiConfig returns config from environment
func DefaultGeminiConfig() GeminiConfig {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	return GeminiConfig{
		APIKey:  apiKey,
		Model:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		Timeout: 60 * time.Second,
	}
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Name implements Provider.
func (c *GeminiClient) Name() Name { return NameGemini }

// Generate implements Provider.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP > 0 {
		config.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", classifyGenAIError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", transportErr(NameGemini, 0, "empty response")
	}
	return text, nil
}

// GetModel returns the model name
func (c *GeminiClient) GetModel() string {
	return c.model
}

// classifyGenAIError maps SDK errors onto the provider error kinds.
func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) {
			return &TransportError{Provider: NameGemini, Err: err}
		}
		apiErr = *apiErrPtr
	}

	if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
		return &RateLimitError{
			Provider:   NameGemini,
			StatusCode: http.StatusTooManyRequests,
			RetryAfter: geminiRetryDelay(apiErr.Details),
			Body:       apiErr.Message,
		}
	}
	return &TransportError{Provider: NameGemini, StatusCode: apiErr.Code, Err: err}
}

// geminiRetryDelay reads the RetryInfo detail, e.g. {"retryDelay": "17s"}.
func geminiRetryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "RetryInfo") {
			continue
		}
		if s, ok := d["retryDelay"].(string); ok {
			if dur, err := time.ParseDuration(s); err == nil && dur > 0 {
				return dur
			}
		}
	}
	return 0
}
