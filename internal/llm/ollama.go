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

// OllamaClient handles Ollama API calls for local inference
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OllamaConfig for Ollama client
type OllamaConfig struct {
	BaseURL string        // Ollama API URL (default: http://localhost:11434)
	Model   string        // Chat model (default: llama3.2)
	Timeout time.Duration // Request timeout
}

// DefaultOllamaConfig returns sensible defaults
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL: getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
		Model:   getEnvOrDefault("OLLAMA_MODEL", "llama3.2"),
		Timeout: 120 * time.Second,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &OllamaClient{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// OllamaChatRequest is the Ollama chat API request
type OllamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []OllamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  *OllamaOptions      `json:"options,omitempty"`
}

// OllamaChatMessage represents a chat message
type OllamaChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// OllamaOptions for generation parameters
type OllamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// OllamaChatResponse is the Ollama chat API response
type OllamaChatResponse struct {
	Model     string            `json:"model"`
	CreatedAt string            `json:"created_at"`
	Message   OllamaChatMessage `json:"message"`
	Done      bool              `json:"done"`
	EvalCount int               `json:"eval_count"`
}

// Name implements Provider.
func (c *OllamaClient) Name() Name { return NameOllama }

// Generate implements Provider.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	chat := OllamaChatRequest{
		Model: c.model,
		Messages: []OllamaChatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Stream: false,
		Options: &OllamaOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		},
	}
	if req.JSON {
		chat.Format = "json"
	}

	resp, err := c.ChatComplete(ctx, chat)
	if err != nil {
		return "", err
	}
	if resp.Message.Content == "" {
		return "", transportErr(NameOllama, 0, "empty response")
	}
	return resp.Message.Content, nil
}

// ChatComplete sends a full chat completion request
func (c *OllamaClient) ChatComplete(ctx context.Context, req OllamaChatRequest) (*OllamaChatResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, transportErr(NameOllama, 0, "failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, transportErr(NameOllama, 0, "failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportErr(NameOllama, 0, "request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(NameOllama, resp.StatusCode, "failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(NameOllama, resp, respBody)
	}

	var ollamaResp OllamaChatResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return nil, transportErr(NameOllama, resp.StatusCode, "failed to decode response: %w", err)
	}

	return &ollamaResp, nil
}

// IsConfigured checks if Ollama is reachable
func (c *OllamaClient) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// GetModel returns the current model
func (c *OllamaClient) GetModel() string {
	return c.model
}
