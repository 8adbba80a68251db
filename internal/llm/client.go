package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"
)

// Client handles Anthropic Messages API calls
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config for the Anthropic client
type Config struct {
	APIKey  string // Anthropic API key
	BaseURL string // API base URL
	Model   string // Model to use
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		BaseURL: "https://api.anthropic.com",
		Model:   "claude-sonnet-4-20250514",
		Timeout: 60 * time.Second,
	}
}

// NewClient creates a new Anthropic client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Message represents a conversation message
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// MessagesRequest is the Messages API request structure
type MessagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

// MessagesResponse is the Messages API response structure
type MessagesResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Name implements Provider.
func (c *Client) Name() Name { return NameClaude }

// Generate implements Provider. The Messages API has no JSON mode; spawn
// prompts already ask for a bare object.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	// Anthropic rejects requests that set both temperature and top_p.
	resp, err := c.Complete(ctx, MessagesRequest{
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: min(req.Temperature, 1.0),
		Messages: []Message{
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return "", transportErr(NameClaude, 0, "empty response")
	}

	return resp.Content[0].Text, nil
}

// Complete sends a Messages API request
func (c *Client) Complete(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 1024
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, transportErr(NameClaude, 0, "failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, transportErr(NameClaude, 0, "failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportErr(NameClaude, 0, "request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(NameClaude, resp.StatusCode, "failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(NameClaude, resp, respBody)
	}

	var msgResp MessagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, transportErr(NameClaude, resp.StatusCode, "failed to decode response: %w", err)
	}

	return &msgResp, nil
}

// IsConfigured checks if API key is set
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}
