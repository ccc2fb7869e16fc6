package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-worksheet/internal/ai"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

const (
	opGenerate = "generate set"
	opReplace  = "replace problem"
)

// Config tunes the LLM requests.
type Config struct {
	// Model overrides the provider default. Empty lets each provider choose.
	Model              string
	SetTemperature     float64
	ReplaceTemperature float64
	MaxTokens          int
}

// DefaultConfig returns the sampling settings the generator was tuned with.
func DefaultConfig() Config {
	return Config{
		SetTemperature:     0.8,
		ReplaceTemperature: 0.9,
	}
}

// LLMGenerator implements Generator on top of an ai.Completer.
type LLMGenerator struct {
	completer ai.Completer
	budget    ai.BudgetChecker
	config    Config
	newID     func() string
}

// Option configures an LLMGenerator.
type Option func(*LLMGenerator)

// WithBudget charges token usage to the requester carried in the context.
func WithBudget(b ai.BudgetChecker) Option {
	return func(g *LLMGenerator) {
		g.budget = b
	}
}

// WithConfig replaces the default sampling settings.
func WithConfig(cfg Config) Option {
	return func(g *LLMGenerator) {
		g.config = cfg
	}
}

// WithIDFunc sets the problem ID source (for tests).
func WithIDFunc(fn func() string) Option {
	return func(g *LLMGenerator) {
		g.newID = fn
	}
}

// NewLLMGenerator creates a generator. A nil completer yields ConfigurationError on every call.
func NewLLMGenerator(completer ai.Completer, opts ...Option) *LLMGenerator {
	g := &LLMGenerator{
		completer: completer,
		config:    DefaultConfig(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// problemOutput is one problem as the model returns it, before an ID is assigned.
type problemOutput struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Grade      string `json:"grade"`
	Semester   string `json:"semester"`
	Unit       string `json:"unit"`
	SubTopic   string `json:"subTopic"`
	Difficulty string `json:"difficulty"`
}

type setOutput struct {
	Problems []problemOutput `json:"problems"`
}

func (g *LLMGenerator) GenerateSet(ctx context.Context, spec Spec) ([]problem.Problem, error) {
	content, err := g.complete(ctx, opGenerate, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildSetPrompt(spec)},
		},
		Model:          g.config.Model,
		MaxTokens:      g.config.MaxTokens,
		Temperature:    g.config.SetTemperature,
		Task:           ai.TaskGenerateSet,
		ResponseFormat: &ai.ResponseFormat{JSON: true, Schema: setSchema},
	})
	if err != nil {
		return nil, err
	}

	doc, body, err := decodeDocument(opGenerate, content)
	if err != nil {
		return nil, err
	}
	if err := validate(setValidator, doc); err != nil {
		return nil, &MalformedResponseError{Op: opGenerate, Reason: "response does not match problem set schema", Raw: content, Err: err}
	}

	var out setOutput
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &MalformedResponseError{Op: opGenerate, Reason: "decode problems", Raw: content, Err: err}
	}

	problems := make([]problem.Problem, 0, len(out.Problems))
	for i, raw := range out.Problems {
		p, err := g.toProblem(raw, problem.Difficulty(raw.Difficulty))
		if err != nil {
			return nil, &MalformedResponseError{Op: opGenerate, Reason: fmt.Sprintf("problem %d", i+1), Raw: content, Err: err}
		}
		if p.Grade == "" {
			p.Grade = spec.Grade
		}
		problems = append(problems, p)
	}

	if len(problems) != spec.Total {
		slog.Warn("generated set size differs from request",
			"requested", spec.Total,
			"received", len(problems),
		)
	}
	return problems, nil
}

func (g *LLMGenerator) ReplaceOne(ctx context.Context, p problem.Problem, d problem.Difficulty) (problem.Problem, error) {
	if !d.Valid() {
		return problem.Problem{}, fmt.Errorf("replace problem: unknown difficulty %q", d)
	}

	content, err := g.complete(ctx, opReplace, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildReplacePrompt(p, d)},
		},
		Model:          g.config.Model,
		MaxTokens:      g.config.MaxTokens,
		Temperature:    g.config.ReplaceTemperature,
		Task:           ai.TaskReplaceProblem,
		ResponseFormat: &ai.ResponseFormat{JSON: true, Schema: problemSchema},
	})
	if err != nil {
		return problem.Problem{}, err
	}

	doc, body, err := decodeDocument(opReplace, content)
	if err != nil {
		return problem.Problem{}, err
	}
	// The requested tier wins over whatever the model reports.
	if obj, ok := doc.(map[string]any); ok {
		obj["difficulty"] = string(d)
	}
	if err := validate(problemValidator, doc); err != nil {
		return problem.Problem{}, &MalformedResponseError{Op: opReplace, Reason: "response does not match problem schema", Raw: content, Err: err}
	}

	var raw problemOutput
	if err := json.Unmarshal(body, &raw); err != nil {
		return problem.Problem{}, &MalformedResponseError{Op: opReplace, Reason: "decode problem", Raw: content, Err: err}
	}
	np, err := g.toProblem(raw, d)
	if err != nil {
		return problem.Problem{}, &MalformedResponseError{Op: opReplace, Reason: "invalid problem", Raw: content, Err: err}
	}

	// Keep the learning objective when the model leaves a field blank.
	if np.Grade == "" {
		np.Grade = p.Grade
	}
	if np.Semester == "" {
		np.Semester = p.Semester
	}
	if np.Unit == "" {
		np.Unit = p.Unit
	}
	if np.SubTopic == "" {
		np.SubTopic = p.SubTopic
	}
	return np, nil
}

func (g *LLMGenerator) complete(ctx context.Context, op string, req ai.CompletionRequest) (string, error) {
	if g.completer == nil {
		return "", &ConfigurationError{Reason: "no AI provider"}
	}

	key := Requester(ctx)
	if g.budget != nil && key != "" {
		ok, err := g.budget.Check(ctx, key)
		if err != nil {
			slog.Warn("budget check failed, allowing request", "requester", key, "error", err)
		} else if !ok {
			return "", ErrBudgetExceeded
		}
	}

	resp, err := g.completer.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, ai.ErrNoProviders) {
			return "", &ConfigurationError{Reason: err.Error()}
		}
		return "", &TransportError{Op: op, Err: err}
	}

	if g.budget != nil && key != "" {
		if err := g.budget.Record(ctx, key, resp.TotalTokens()); err != nil {
			slog.Warn("recording token usage failed", "requester", key, "error", err)
		}
	}
	return resp.Content, nil
}

func (g *LLMGenerator) toProblem(raw problemOutput, d problem.Difficulty) (problem.Problem, error) {
	if strings.TrimSpace(raw.Question) == "" {
		return problem.Problem{}, errors.New("empty question")
	}
	if strings.TrimSpace(raw.Answer) == "" {
		return problem.Problem{}, errors.New("empty answer")
	}
	if !d.Valid() {
		return problem.Problem{}, fmt.Errorf("unknown difficulty %q", d)
	}
	return problem.Problem{
		ID:         g.newID(),
		Question:   strings.TrimSpace(raw.Question),
		Answer:     strings.TrimSpace(raw.Answer),
		Grade:      raw.Grade,
		Semester:   raw.Semester,
		Unit:       raw.Unit,
		SubTopic:   raw.SubTopic,
		Difficulty: d,
	}, nil
}

// decodeDocument strips markdown fences and parses the payload as generic JSON.
// It also returns the stripped body for typed decoding.
func decodeDocument(op string, content string) (any, []byte, error) {
	body := stripCodeFences(content)
	if body == "" {
		return nil, nil, &MalformedResponseError{Op: op, Reason: "empty response", Raw: content}
	}
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, nil, &MalformedResponseError{Op: op, Reason: "response is not JSON", Raw: content, Err: err}
	}
	return doc, []byte(body), nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		// Language tag in any case: json, JSON, Json.
		if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
			rest = rest[4:]
		}
		s = rest
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
