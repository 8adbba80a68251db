package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// AzureClient handles Azure OpenAI API calls
type AzureClient struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
}

// AzureConfig for Azure OpenAI client
type AzureConfig struct {
	Endpoint   string        // Azure OpenAI endpoint
	APIKey     string        // Azure API key
	Deployment string        // Deployment name
	APIVersion string        // API version (e.g., "2024-10-21")
	Timeout    time.Duration // Request timeout
}

// DefaultAzureConfig returns config from environment
func DefaultAzureConfig() AzureConfig {
	return AzureConfig{
		Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-10-21"),
		Timeout:    60 * time.Second,
	}
}

// NewAzureClient creates a new Azure OpenAI client
func NewAzureClient(cfg AzureConfig) *AzureClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-10-21"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &AzureClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// AzureMessage represents a chat message for Azure OpenAI
type AzureMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// AzureResponseFormat selects text or JSON object output
type AzureResponseFormat struct {
	Type string `json:"type"`
}

// AzureChatRequest is the Azure OpenAI chat request
type AzureChatRequest struct {
	Messages       []AzureMessage       `json:"messages"`
	MaxTokens      int                  `json:"max_tokens,omitempty"`
	Temperature    float64              `json:"temperature,omitempty"`
	TopP           float64              `json:"top_p,omitempty"`
	ResponseFormat *AzureResponseFormat `json:"response_format,omitempty"`
}

// AzureChatResponse is the Azure OpenAI chat response
type AzureChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int          `json:"index"`
		Message      AzureMessage `json:"message"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
}

// Name implements Provider.
func (c *AzureClient) Name() Name { return NameAzure }

// Generate implements Provider.
func (c *AzureClient) Generate(ctx context.Context, req Request) (string, error) {
	chat := AzureChatRequest{
		Messages: []AzureMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.JSON {
		chat.ResponseFormat = &AzureResponseFormat{Type: "json_object"}
	}

	resp, err := c.Complete(ctx, chat)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", transportErr(NameAzure, 0, "empty response from Azure OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}

// Complete sends a chat completion request to Azure OpenAI
func (c *AzureClient) Complete(ctx context.Context, req AzureChatRequest) (*AzureChatResponse, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = 1024
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, transportErr(NameAzure, 0, "failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, transportErr(NameAzure, 0, "failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportErr(NameAzure, 0, "request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(NameAzure, resp.StatusCode, "failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(NameAzure, resp, respBody)
	}

	var azureResp AzureChatResponse
	if err := json.Unmarshal(respBody, &azureResp); err != nil {
		return nil, transportErr(NameAzure, resp.StatusCode, "failed to decode response: %w", err)
	}

	return &azureResp, nil
}

// IsConfigured checks if Azure OpenAI is properly configured
func (c *AzureClient) IsConfigured() bool {
	return c.endpoint != "" && c.apiKey != "" && c.deployment != ""
}

// GetDeployment returns the deployment name
func (c *AzureClient) GetDeployment() string {
	return c.deployment
}
