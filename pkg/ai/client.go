// Package ai provides the LLM client used by lab engines. Clients are
// explicit dependencies injected into engine constructors, never
// process-wide singletons, so tests can substitute fakes.
package ai

import (
	"context"
)

// Message represents a single message in a conversation
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Request represents a completion request to an LLM
type Request struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	SystemMsg   string    `json:"system,omitempty"`
	JSONMode    bool      `json:"json_mode,omitempty"` // request a JSON object response
}

// Usage tracks token usage
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response represents a completion response from an LLM
type Response struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Model        string `json:"model,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// Client is the interface lab engines use to call an LLM.
type Client interface {
	// Complete sends a completion request to the LLM
	Complete(ctx context.Context, request Request) (*Response, error)

	// CompleteSimple is a convenience method for simple text completion
	CompleteSimple(ctx context.Context, prompt string) (string, error)
}

// ClientConfig holds configuration for creating LLM clients
type ClientConfig struct {
	APIKey      string  `json:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Timeout     int     `json:"timeout,omitempty"` // seconds
}
