package completion

import (
	"context"
	"fmt"
	"sync"
)

// Message is one turn of conversational input handed to a provider.
// Role is "user" or "assistant"; system instructions travel separately on the
// Request so providers that take them out of band (Anthropic) do not need to
// re-split the transcript.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request captures the normalized provider input produced by agents.
type Request struct {
	Instruction string    `json:"instruction"` // System instruction for the provider
	Messages    []Message `json:"messages"`
	MaxTokens   int64     `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final completion returned by a provider.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a completer implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Completer is the minimal interface agents use to phrase replies. Agents must
// degrade to deterministic templates when Complete returns an error, so
// implementations are free to fail fast.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the completer implementation.
	Info() Info
}

// MockCompleter is a lightweight in-memory Completer useful for tests and
// examples. Responses are keyed by the text of the last user message, and
// every request is recorded for inspection.
type MockCompleter struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	requests  []Request
	err       error
}

// NewMockCompleter constructs a MockCompleter.
func NewMockCompleter(name string) *MockCompleter {
	return &MockCompleter{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input text.
func (m *MockCompleter) AddResponse(input, response string) { m.responses[input] = response }

// FailWith makes every Complete call return err. Used to exercise the
// deterministic fallback paths in agents.
func (m *MockCompleter) FailWith(err error) { m.err = err }

// Requests returns the requests seen so far, oldest first.
func (m *MockCompleter) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}

	var input string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			input = req.Messages[i].Text
			break
		}
	}
	text := m.responses[input]
	if text == "" {
		text = fmt.Sprintf("Mock response to: %s", input)
	}

	return &Response{Text: text, FinishReason: "stop"}, nil
}

// Info implements the Completer interface.
func (m *MockCompleter) Info() Info { return m.info }
