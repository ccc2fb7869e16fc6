package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GenAIProvider implements Provider for Google Gemini through the official Go SDK.
// Unlike GoogleProvider it keeps one client open, so call Close on shutdown.
type GenAIProvider struct {
	client *genai.Client
	model  string
}

// NewGenAIProvider opens an SDK client. An empty model selects gemini-2.5-flash.
func NewGenAIProvider(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GenAIProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("genai: API key is empty")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai: new client: %w", err)
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}
	return &GenAIProvider{client: client, model: model}, nil
}

// Close releases the SDK client.
func (p *GenAIProvider) Close() error {
	return p.client.Close()
}

func (p *GenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	name := req.Model
	if name == "" {
		name = p.model
	}
	m := p.client.GenerativeModel(name)

	if sys := systemPrompt(req.Messages); sys != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}
	if req.Temperature > 0 {
		m.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if rf := req.ResponseFormat; rf != nil && rf.JSON {
		m.ResponseMIMEType = "application/json"
		if rf.Schema != nil {
			m.ResponseSchema = genaiSchema(rf.Schema.Definition)
		}
	}

	var history []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			continue
		case "assistant":
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(history) == 0 {
		return CompletionResponse{}, errors.New("genai: no user message")
	}

	last := history[len(history)-1]
	cs := m.StartChat()
	cs.History = history[:len(history)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("genai: generate content: %w", err)
	}

	text := genaiText(resp)
	if text == "" {
		return CompletionResponse{}, fmt.Errorf("no content in response")
	}

	out := CompletionResponse{Content: text, Model: name}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func (p *GenAIProvider) HealthCheck(ctx context.Context) error {
	it := p.client.ListModels(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func genaiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

var genaiTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

// genaiSchema converts a JSON Schema definition into the SDK's schema type.
// Keywords the SDK has no field for are dropped.
func genaiSchema(def map[string]any) *genai.Schema {
	if def == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := def["type"].(string); ok {
		s.Type = genaiTypes[strings.ToLower(t)]
	}
	s.Description, _ = def["description"].(string)
	s.Format, _ = def["format"].(string)
	s.Enum = stringList(def["enum"])
	s.Required = stringList(def["required"])
	if items, ok := def["items"].(map[string]any); ok {
		s.Items = genaiSchema(items)
	}
	if props, ok := def["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = genaiSchema(pm)
			}
		}
	}
	return s
}

func stringList(v any) []string {
	switch vs := v.(type) {
	case []string:
		return append([]string(nil), vs...)
	case []any:
		out := make([]string, 0, len(vs))
		for _, x := range vs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
