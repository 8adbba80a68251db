package mockservers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// DuckDuckGoMockServer provides a mock Instant Answer API for testing.
type DuckDuckGoMockServer struct {
	Server *httptest.Server

	// Answers maps a query to its AbstractText. Unknown queries get an
	// empty answer.
	Answers map[string]string
	// Fail makes every request answer 503.
	Fail bool

	mu      sync.Mutex
	queries []string
}

// NewDuckDuckGoMockServer creates a new mock DuckDuckGo server.
func NewDuckDuckGoMockServer(t *testing.T) *DuckDuckGoMockServer {
	t.Helper()

	mock := &DuckDuckGoMockServer{
		Answers: make(map[string]string),
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")

		mock.mu.Lock()
		mock.queries = append(mock.queries, q)
		fail := mock.Fail
		answer := mock.Answers[q]
		mock.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/x-javascript")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"AbstractText":   answer,
			"AbstractSource": "Wikipedia",
			"RelatedTopics":  []interface{}{},
		})
	}))

	t.Cleanup(func() {
		mock.Server.Close()
	})

	return mock
}

// URL returns the base URL to configure the client with.
func (m *DuckDuckGoMockServer) URL() string {
	return m.Server.URL + "/"
}

// Queries returns every query seen so far.
func (m *DuckDuckGoMockServer) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// SetFail toggles failure mode.
func (m *DuckDuckGoMockServer) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fail = fail
}
