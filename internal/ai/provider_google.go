package ai

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.5-flash"
)

// GoogleProvider calls the Gemini REST API directly. GenAIProvider is the SDK-backed twin.
type GoogleProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithGoogleBaseURL sets the base URL (for testing).
func WithGoogleBaseURL(url string) GoogleOption {
	return func(p *GoogleProvider) { p.baseURL = url }
}

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(client *http.Client) GoogleOption {
	return func(p *GoogleProvider) { p.client = client }
}

// WithGoogleModel sets the model used when a request does not name one.
func WithGoogleModel(model string) GoogleOption {
	return func(p *GoogleProvider) {
		if model != "" {
			p.model = model
		}
	}
}

func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{apiKey: apiKey, baseURL: defaultGeminiBaseURL, model: defaultGeminiModel}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// geminiRole maps chat roles onto Gemini's user/model pair. System turns report false.
func geminiRole(role string) (string, bool) {
	switch role {
	case "system":
		return "", false
	case "assistant":
		return "model", true
	default:
		return role, true
	}
}

// generationConfig is nil when the request sets none of max tokens, temperature or JSON mode.
func generationConfig(req CompletionRequest) *geminiGenerationConfig {
	rf := req.ResponseFormat
	jsonMode := rf != nil && rf.JSON
	if req.MaxTokens <= 0 && req.Temperature <= 0 && !jsonMode {
		return nil
	}
	cfg := &geminiGenerationConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
		if rf.Schema != nil {
			cfg.ResponseSchema = geminiSchema(rf.Schema.Definition)
		}
	}
	return cfg
}

func (p *GoogleProvider) url(path string) string {
	return p.baseURL + path + "?" + url.Values{"key": {p.apiKey}}.Encode()
}

func (p *GoogleProvider) endpoint() jsonEndpoint {
	return jsonEndpoint{provider: "gemini", client: p.client}
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body := geminiRequest{GenerationConfig: generationConfig(req)}
	for _, m := range req.Messages {
		role, ok := geminiRole(m.Role)
		if !ok {
			continue
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	if sys := systemPrompt(req.Messages); sys != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: sys}}}
	}

	var resp geminiResponse
	if err := p.endpoint().post(ctx, p.url("/models/"+model+":generateContent"), body, &resp); err != nil {
		return CompletionResponse{}, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return CompletionResponse{}, errors.New("no content in response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return CompletionResponse{
		Content:      text.String(),
		Model:        model,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

func (p *GoogleProvider) HealthCheck(ctx context.Context) error {
	return p.endpoint().probe(ctx, p.url("/models"))
}
