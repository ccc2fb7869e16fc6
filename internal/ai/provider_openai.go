package ai

import (
	"context"
	"errors"
	"net/http"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultDeepSeekBaseURL = "https://api.deepseek.com"
)

// OpenAIProvider speaks the chat completions dialect shared by OpenAI, DeepSeek and Ollama.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	name    string
	model   string
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL points the provider at another OpenAI-compatible host.
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = client }
}

// WithProviderName labels errors and responses, e.g. "deepseek".
func WithProviderName(name string) OpenAIOption {
	return func(p *OpenAIProvider) { p.name = name }
}

// WithDefaultModel sets the model used when a request does not name one.
func WithDefaultModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: defaultOpenAIBaseURL,
		name:    "openai",
		model:   "gpt-4o-mini",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDeepSeekProvider is an OpenAIProvider preset for api.deepseek.com.
func NewDeepSeekProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	presets := []OpenAIOption{
		WithBaseURL(defaultDeepSeekBaseURL),
		WithProviderName("deepseek"),
		WithDefaultModel("deepseek-chat"),
	}
	return NewOpenAIProvider(apiKey, append(presets, opts...)...)
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

// openaiResponseFormat only selects JSON mode. The problem schema rides in the prompt
// because strict json_schema mode rejects its optional keywords.
type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) endpoint() jsonEndpoint {
	e := jsonEndpoint{provider: p.name, client: p.client, header: http.Header{}}
	if p.apiKey != "" {
		e.header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return e
}

func (p *OpenAIProvider) chatRequest(req CompletionRequest) openaiRequest {
	out := openaiRequest{Model: req.Model, MaxTokens: req.MaxTokens}
	if out.Model == "" {
		out.Model = p.model
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, openaiMessage(m))
	}
	if req.Temperature > 0 {
		t := req.Temperature
		out.Temperature = &t
	}
	if rf := req.ResponseFormat; rf != nil && rf.JSON {
		out.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}
	return out
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var resp openaiResponse
	if err := p.endpoint().post(ctx, p.baseURL+"/chat/completions", p.chatRequest(req), &resp); err != nil {
		return CompletionResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return CompletionResponse{}, errors.New("no choices in response")
	}
	return CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	return p.endpoint().probe(ctx, p.baseURL+"/models")
}
