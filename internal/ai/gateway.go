// Package ai provides a provider-agnostic LLM gateway with an ordered fallback chain.
package ai

import (
	"context"
	"fmt"
)

// TaskType defines the kind of AI task, used for routing and logging.
type TaskType int

const (
	TaskGenerateSet TaskType = iota
	TaskReplaceProblem
)

func (t TaskType) String() string {
	switch t {
	case TaskGenerateSet:
		return "generate_set"
	case TaskReplaceProblem:
		return "replace_problem"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat asks the provider for machine-readable output.
type ResponseFormat struct {
	// JSON requests a bare JSON document without prose or markdown.
	JSON bool
	// Schema, when set, constrains the JSON shape on providers that support it.
	Schema *Schema
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages       []Message       `json:"messages"`
	Model          string          `json:"model,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	Task           TaskType        `json:"task,omitempty"`
	ResponseFormat *ResponseFormat `json:"-"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Provider     string `json:"provider,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Completer is anything that can answer a completion request.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Provider is a Completer the router can probe.
type Provider interface {
	Completer
	HealthCheck(ctx context.Context) error
}

// systemPrompt joins all system messages; used by providers that take the system prompt separately.
func systemPrompt(messages []Message) string {
	var out string
	for _, m := range messages {
		if m.Role != "system" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += m.Content
	}
	return out
}

// APIError is a non-success HTTP status returned by a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}
