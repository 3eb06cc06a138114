package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// MockClassifierServer creates a test server that mocks the OpenAI-compatible
// chat completions API
type MockClassifierServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses []string
	calls     atomic.Int64
}

// NewMockClassifierServer creates a new mock classifier API server. Each
// completion request pops the next queued response; with the queue empty the
// last response repeats.
func NewMockClassifierServer(t *testing.T) *MockClassifierServer {
	t.Helper()
	m := &MockClassifierServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}}) //nolint:errcheck // test mock response
		case "/chat/completions":
			m.calls.Add(1)
			content := m.nextResponse()
			response := map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"role": "assistant", "content": content}},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(m.Close)
	return m
}

// QueueResponse appends a completion body to the scripted queue.
func (m *MockClassifierServer) QueueResponse(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, content)
}

// Calls reports how many completion requests the server has seen.
func (m *MockClassifierServer) Calls() int {
	return int(m.calls.Load())
}

func (m *MockClassifierServer) nextResponse() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return `{"allow": true, "highlight": false, "reason": "default"}`
	}
	next := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return next
}

// VMixCall records one vMix API invocation.
type VMixCall struct {
	Function string
	Input    string
	Name     string
	Value    string
}

// MockVMixServer creates a test server that mocks the vMix Web API
type MockVMixServer struct {
	*httptest.Server

	mu    sync.Mutex
	calls []VMixCall

	// FailAfter makes requests past the first n return HTTP 500. Negative
	// means never fail.
	FailAfter int
}

// NewMockVMixServer creates a new mock vMix API server recording every call.
func NewMockVMixServer(t *testing.T) *MockVMixServer {
	t.Helper()
	m := &MockVMixServer{FailAfter: -1}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		m.mu.Lock()
		failing := m.FailAfter >= 0 && len(m.calls) >= m.FailAfter
		m.calls = append(m.calls, VMixCall{
			Function: q.Get("Function"),
			Input:    q.Get("Input"),
			Name:     q.Get("SelectedName"),
			Value:    q.Get("Value"),
		})
		m.mu.Unlock()
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Function completed")) //nolint:errcheck // test mock response
	}))
	t.Cleanup(m.Close)
	return m
}

// Calls returns a snapshot of recorded invocations.
func (m *MockVMixServer) Calls() []VMixCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]VMixCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// SetTexts filters the recorded calls down to SetText field updates.
func (m *MockVMixServer) SetTexts() []VMixCall {
	var out []VMixCall
	for _, c := range m.Calls() {
		if c.Function == "SetText" {
			out = append(out, c)
		}
	}
	return out
}

// Transitions filters the recorded calls down to transition triggers.
func (m *MockVMixServer) Transitions() []VMixCall {
	var out []VMixCall
	for _, c := range m.Calls() {
		if c.Function != "SetText" && c.Function != "" {
			out = append(out, c)
		}
	}
	return out
}
