package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Azure OpenAI Client Tests
// =============================================================================

func TestAzureClient_Generate(t *testing.T) {
	var got AzureChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/openai/deployments/gpt-4o/chat/completions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != "2024-10-21" {
			t.Errorf("api-version = %q", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("api-key") != "k" {
			t.Errorf("api-key = %q", r.Header.Get("api-key"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"username\":\"x\"}"}}]}`))
	}))
	defer server.Close()

	client := NewAzureClient(AzureConfig{Endpoint: server.URL, APIKey: "k", Deployment: "gpt-4o"})
	text, err := client.Generate(context.Background(), Request{System: "s", Prompt: "p", JSON: true})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != `{"username":"x"}` {
		t.Errorf("text = %q", text)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", got.ResponseFormat)
	}
	if got.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d, want default 1024", got.MaxTokens)
	}
}

func TestAzureClient_GenerateNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewAzureClient(AzureConfig{Endpoint: server.URL, APIKey: "k", Deployment: "d"})
	_, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if err == nil || IsRateLimited(err) {
		t.Errorf("error = %v, want transport error", err)
	}
}
