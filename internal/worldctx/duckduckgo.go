package worldctx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DuckDuckGoConfig for the Instant Answer client
type DuckDuckGoConfig struct {
	BaseURL string        // default: https://api.duckduckgo.com/
	Timeout time.Duration // default: 10s
}

// DuckDuckGo looks up short snippets through the Instant Answer API.
type DuckDuckGo struct {
	baseURL    string
	httpClient *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo client
func NewDuckDuckGo(cfg DuckDuckGoConfig) *DuckDuckGo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.duckduckgo.com/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &DuckDuckGo{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type instantAnswer struct {
	AbstractText   string `json:"AbstractText"`
	AbstractSource string `json:"AbstractSource"`
	RelatedTopics  []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

// Lookup returns a snippet for query, or "" when nothing usable came back.
func (d *DuckDuckGo) Lookup(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", d.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("duckduckgo status %d", resp.StatusCode)
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if text := strings.TrimSpace(answer.AbstractText); text != "" {
		return text, nil
	}
	if len(answer.RelatedTopics) > 0 {
		return strings.TrimSpace(answer.RelatedTopics[0].Text), nil
	}
	return "", nil
}
