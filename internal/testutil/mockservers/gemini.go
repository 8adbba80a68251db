// Package mockservers provides httptest mock servers for external APIs.
package mockservers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
)

// GeminiMockServer provides a mock Gemini API (generateContent) for testing.
type GeminiMockServer struct {
	Server *httptest.Server

	// Reply is returned as the single candidate's text.
	Reply string
	// Status, when non-zero and not 200, is answered with a Google API
	// error body instead of a candidate.
	Status       int
	StatusName   string // e.g. RESOURCE_EXHAUSTED
	RetryDelay   string // e.g. "17s"; adds a RetryInfo detail
	ErrorMessage string

	mu       sync.Mutex
	requests []GeminiRequest
	t        *testing.T
}

// GeminiRequest is the part of a generateContent body tests inspect.
type GeminiRequest struct {
	Model             string          `json:"-"`
	APIKey            string          `json:"-"`
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction"`
	GenerationConfig  map[string]any  `json:"generationConfig"`
}

type geminiContent struct {
	Role  string `json:"role,omitempty"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

// Text joins the text parts of c.
func (c geminiContent) Text() string {
	var s string
	for _, p := range c.Parts {
		s += p.Text
	}
	return s
}

var generateContentPath = regexp.MustCompile(`/models/([^/:]+):generateContent$`)

// NewGeminiMockServer creates a new mock Gemini API server.
func NewGeminiMockServer(t *testing.T) *GeminiMockServer {
	t.Helper()

	mock := &GeminiMockServer{
		Reply: "The timeline is a mirror with a delay.",
		t:     t,
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))

	t.Cleanup(func() {
		mock.Server.Close()
	})

	return mock
}

// URL returns the base URL to configure the client with.
func (m *GeminiMockServer) URL() string {
	return m.Server.URL
}

// Requests returns every generateContent request seen so far.
func (m *GeminiMockServer) Requests() []GeminiRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GeminiRequest(nil), m.requests...)
}

func (m *GeminiMockServer) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	match := generateContentPath.FindStringSubmatch(r.URL.Path)
	if r.Method != http.MethodPost || match == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 404, "message": "Not Found", "status": "NOT_FOUND"},
		})
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req GeminiRequest
	if err := json.Unmarshal(body, &req); err != nil {
		m.t.Errorf("gemini mock: invalid request body: %v", err)
	}
	req.Model = match[1]
	req.APIKey = r.Header.Get("x-goog-api-key")
	if req.APIKey == "" {
		req.APIKey = r.URL.Query().Get("key")
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Status != 0 && m.Status != http.StatusOK {
		apiErr := map[string]any{
			"code":    m.Status,
			"message": m.ErrorMessage,
			"status":  m.StatusName,
		}
		if m.RetryDelay != "" {
			apiErr["details"] = []map[string]any{{
				"@type":      "type.googleapis.com/google.rpc.RetryInfo",
				"retryDelay": m.RetryDelay,
			}}
		}
		w.WriteHeader(m.Status)
		json.NewEncoder(w).Encode(map[string]any{"error": apiErr})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": m.Reply}},
			},
			"finishReason": "STOP",
		}},
		"modelVersion": req.Model,
	})
}
