package ai

import (
	"context"
	"net/http"
	"strings"
)

// OllamaProvider talks to a self-hosted Ollama through its OpenAI-compatible /v1 surface.
type OllamaProvider struct {
	baseURL string
	chat    *OpenAIProvider
	client  *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*ollamaSettings)

type ollamaSettings struct {
	client *http.Client
	model  string
}

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(s *ollamaSettings) { s.client = client }
}

// WithOllamaModel sets the model used when a request does not name one.
func WithOllamaModel(model string) OllamaOption {
	return func(s *ollamaSettings) {
		if model != "" {
			s.model = model
		}
	}
}

func NewOllamaProvider(baseURL string, opts ...OllamaOption) *OllamaProvider {
	s := ollamaSettings{model: "llama3:8b"}
	for _, opt := range opts {
		opt(&s)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &OllamaProvider{
		baseURL: baseURL,
		client:  s.client,
		chat: NewOpenAIProvider("",
			WithBaseURL(baseURL+"/v1"),
			WithHTTPClient(s.client),
			WithProviderName("ollama"),
			WithDefaultModel(s.model),
		),
	}
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return p.chat.Complete(ctx, req)
}

// HealthCheck lists local models; the /v1 surface has no cheap probe of its own.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	e := jsonEndpoint{provider: "ollama", client: p.client}
	return e.probe(ctx, p.baseURL+"/api/tags")
}
