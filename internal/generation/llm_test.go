package generation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-worksheet/internal/ai"
	"github.com/p-n-ai/pai-worksheet/internal/generation"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

const twoProblems = `{"problems":[
 {"question":"연필이 4자루씩 3묶음 있습니다. 연필은 모두 몇 자루입니까?","answer":"4 x 3 = 12. 답: 12자루","grade":"3학년","semester":"2학기","unit":"곱셈","subTopic":"(세 자리 수)×(한 자리 수)","difficulty":"Conceptual"},
 {"question":"사탕 24개를 4명에게 똑같이 나누면 한 명이 몇 개를 받습니까?","answer":"24 ÷ 4 = 6. 답: 6개","grade":"3학년","semester":"2학기","unit":"나눗셈","subTopic":"(몇십)÷(몇)","difficulty":"Applied"}
]}`

func sampleSpec() generation.Spec {
	return generation.Spec{
		Grade: "3학년",
		Total: 2,
		Targets: []generation.Target{
			{Semester: "2학기", Unit: "곱셈", SubTopics: []string{"(세 자리 수)×(한 자리 수)"}},
			{Semester: "2학기", Unit: "나눗셈"},
		},
		Counts: map[problem.Difficulty]int{problem.Conceptual: 1, problem.Applied: 1, problem.Advanced: 0},
	}
}

func sequentialIDs() generation.Option {
	n := 0
	return generation.WithIDFunc(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func TestLLMGenerator_GenerateSet(t *testing.T) {
	mock := ai.NewMockProvider(twoProblems)
	g := generation.NewLLMGenerator(mock, sequentialIDs())

	got, err := g.GenerateSet(context.Background(), sampleSpec())
	if err != nil {
		t.Fatalf("GenerateSet() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "id-1" || got[1].ID != "id-2" {
		t.Errorf("ids = %q, %q", got[0].ID, got[1].ID)
	}
	if got[1].Difficulty != problem.Applied || got[1].Unit != "나눗셈" {
		t.Errorf("problem 2 = %+v", got[1])
	}

	req, _ := mock.Last()
	if req.Temperature != 0.8 {
		t.Errorf("Temperature = %v, want 0.8", req.Temperature)
	}
	if req.Task != ai.TaskGenerateSet {
		t.Errorf("Task = %v", req.Task)
	}
	if req.ResponseFormat == nil || !req.ResponseFormat.JSON || req.ResponseFormat.Schema == nil {
		t.Fatalf("ResponseFormat = %+v, want JSON with schema", req.ResponseFormat)
	}
	if req.Model != "" {
		t.Errorf("Model = %q, want provider default", req.Model)
	}

	prompt := req.Messages[len(req.Messages)-1].Content
	for _, want := range []string{
		"**Total Problems to Generate:** 2",
		"**Grade Level:** 3학년",
		"Semester: 2학기, Unit: 곱셈 (Sub-topics: (세 자리 수)×(한 자리 수))",
		"Unit: 나눗셈 (Sub-topics: All sub-topics within the unit)",
		"**개념 이해** (Conceptual): 1 문제",
		"Strictly adhere to the number of problems",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "(Advanced)") {
		t.Error("prompt should omit tiers with zero count")
	}
}

func TestLLMGenerator_GenerateSet_CodeFence(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"lowercase tag", "```json\n" + twoProblems + "\n```"},
		{"uppercase tag", "```JSON\n" + twoProblems + "\n```"},
		{"mixed case tag", "```Json\n" + twoProblems + "\n```"},
		{"no tag", "```\n" + twoProblems + "\n```"},
		{"surrounding whitespace", "\n  ```json " + twoProblems + "```  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := generation.NewLLMGenerator(ai.NewMockProvider(tt.content))
			got, err := g.GenerateSet(context.Background(), sampleSpec())
			if err != nil {
				t.Fatalf("GenerateSet() error = %v", err)
			}
			if len(got) != 2 || got[0].ID == "" || got[0].ID == got[1].ID {
				t.Errorf("problems = %+v", got)
			}
		})
	}
}

func TestLLMGenerator_GenerateSet_CountMismatchIsNotAnError(t *testing.T) {
	spec := sampleSpec()
	spec.Total = 5
	g := generation.NewLLMGenerator(ai.NewMockProvider(twoProblems))

	got, err := g.GenerateSet(context.Background(), spec)
	if err != nil {
		t.Fatalf("GenerateSet() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want the 2 problems returned", len(got))
	}
}

func TestLLMGenerator_GenerateSet_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", "  "},
		{"not json", "여기 문제가 있습니다"},
		{"missing problems", `{"items": []}`},
		{"problems not array", `{"problems": "none"}`},
		{"unknown difficulty", `{"problems":[{"question":"q","answer":"a","grade":"3학년","semester":"1학기","unit":"u","subTopic":"s","difficulty":"Hard"}]}`},
		{"missing answer", `{"problems":[{"question":"q","grade":"3학년","semester":"1학기","unit":"u","subTopic":"s","difficulty":"Applied"}]}`},
		{"blank question", `{"problems":[{"question":" ","answer":"a","grade":"3학년","semester":"1학기","unit":"u","subTopic":"s","difficulty":"Applied"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := generation.NewLLMGenerator(ai.NewMockProvider(tt.content))
			_, err := g.GenerateSet(context.Background(), sampleSpec())

			var merr *generation.MalformedResponseError
			if !errors.As(err, &merr) {
				t.Fatalf("GenerateSet() error = %v, want *MalformedResponseError", err)
			}
		})
	}
}

func TestLLMGenerator_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		completer ai.Completer
		check     func(error) bool
	}{
		{
			name:      "nil completer",
			completer: nil,
			check:     func(err error) bool { var e *generation.ConfigurationError; return errors.As(err, &e) },
		},
		{
			name:      "router without providers",
			completer: ai.NewRouter(),
			check:     func(err error) bool { var e *generation.ConfigurationError; return errors.As(err, &e) },
		},
		{
			name:      "provider failure",
			completer: &ai.MockProvider{Err: &ai.APIError{Provider: "gemini", StatusCode: 503}},
			check: func(err error) bool {
				var e *generation.TransportError
				var apiErr *ai.APIError
				return errors.As(err, &e) && errors.As(err, &apiErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := generation.NewLLMGenerator(tt.completer)
			_, err := g.GenerateSet(context.Background(), sampleSpec())
			if !tt.check(err) {
				t.Errorf("GenerateSet() error = %v (%T)", err, err)
			}
		})
	}
}

func TestLLMGenerator_ReplaceOne_ForcesDifficulty(t *testing.T) {
	mock := ai.NewMockProvider(`{"question":"귤 36개를 한 상자에 8개씩 담으면 몇 상자가 되고 몇 개가 남습니까?","answer":"36 ÷ 8 = 4 … 4. 답: 4상자, 4개","grade":"3학년","semester":"2학기","unit":"나눗셈","subTopic":"나머지가 있는 (몇십몇)÷(몇)","difficulty":"Applied"}`)
	g := generation.NewLLMGenerator(mock, sequentialIDs())

	original := problem.Problem{
		ID:         "old",
		Question:   "사탕 24개를 4명에게 똑같이 나누면 한 명이 몇 개를 받습니까?",
		Answer:     "24 ÷ 4 = 6. 답: 6개",
		Grade:      "3학년",
		Semester:   "2학기",
		Unit:       "나눗셈",
		SubTopic:   "나머지가 있는 (몇십몇)÷(몇)",
		Difficulty: problem.Conceptual,
	}

	got, err := g.ReplaceOne(context.Background(), original, problem.Advanced)
	if err != nil {
		t.Fatalf("ReplaceOne() error = %v", err)
	}
	if got.Difficulty != problem.Advanced {
		t.Errorf("Difficulty = %q, want Advanced", got.Difficulty)
	}
	if got.ID == "" || got.ID == original.ID {
		t.Errorf("ID = %q, want a fresh id", got.ID)
	}

	req, _ := mock.Last()
	if req.Temperature != 0.9 {
		t.Errorf("Temperature = %v, want 0.9", req.Temperature)
	}
	if req.Task != ai.TaskReplaceProblem {
		t.Errorf("Task = %v", req.Task)
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	for _, want := range []string{original.Question, "**NEW Difficulty Level:** Advanced", "**Specific Sub-topic:** " + original.SubTopic} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLLMGenerator_ReplaceOne_OverrideAcceptsUnknownLabel(t *testing.T) {
	mock := ai.NewMockProvider(`{"question":"q","answer":"a. 답: 1","grade":"","semester":"","unit":"","subTopic":"","difficulty":"Hard"}`)
	g := generation.NewLLMGenerator(mock)

	original := problem.Problem{ID: "old", Grade: "3학년", Semester: "1학기", Unit: "곱셈", SubTopic: "(몇십)×(몇)"}
	got, err := g.ReplaceOne(context.Background(), original, problem.Conceptual)
	if err != nil {
		t.Fatalf("ReplaceOne() error = %v", err)
	}
	if got.Difficulty != problem.Conceptual {
		t.Errorf("Difficulty = %q", got.Difficulty)
	}
	if got.Grade != "3학년" || got.Unit != "곱셈" || got.SubTopic != "(몇십)×(몇)" {
		t.Errorf("blank fields should fall back to the original: %+v", got)
	}
}

func TestLLMGenerator_ReplaceOne_Malformed(t *testing.T) {
	g := generation.NewLLMGenerator(ai.NewMockProvider(`{"problems": []}`))
	_, err := g.ReplaceOne(context.Background(), problem.Problem{ID: "old"}, problem.Applied)

	var merr *generation.MalformedResponseError
	if !errors.As(err, &merr) {
		t.Fatalf("ReplaceOne() error = %v, want *MalformedResponseError", err)
	}
	if merr.Raw == "" {
		t.Error("Raw should keep the payload")
	}
}

func TestLLMGenerator_ReplaceOne_InvalidDifficulty(t *testing.T) {
	mock := ai.NewMockProvider("{}")
	g := generation.NewLLMGenerator(mock)

	if _, err := g.ReplaceOne(context.Background(), problem.Problem{}, problem.Difficulty("Hard")); err == nil {
		t.Fatal("ReplaceOne() should reject an unknown difficulty")
	}
	if mock.Calls() != 0 {
		t.Error("no request should be sent for an unknown difficulty")
	}
}

func TestLLMGenerator_Budget(t *testing.T) {
	mock := ai.NewMockProvider(twoProblems)
	budget := ai.NewInMemoryBudget(50)
	g := generation.NewLLMGenerator(mock, generation.WithBudget(budget))

	ctx := generation.WithRequester(context.Background(), "session-1")
	if _, err := g.GenerateSet(ctx, sampleSpec()); err != nil {
		t.Fatalf("first GenerateSet() error = %v", err)
	}

	used, _, _ := budget.Usage(ctx, "session-1")
	if used == 0 {
		t.Fatal("token usage was not recorded")
	}

	_, err := g.GenerateSet(ctx, sampleSpec())
	if !errors.Is(err, generation.ErrBudgetExceeded) {
		t.Fatalf("second GenerateSet() error = %v, want ErrBudgetExceeded", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", mock.Calls())
	}

	// Requests without a requester are not metered.
	if _, err := g.GenerateSet(context.Background(), sampleSpec()); err != nil {
		t.Errorf("unmetered GenerateSet() error = %v", err)
	}
}

func TestLLMGenerator_ConfigOverrides(t *testing.T) {
	mock := ai.NewMockProvider(twoProblems)
	g := generation.NewLLMGenerator(mock, generation.WithConfig(generation.Config{
		Model:          "gemini-2.5-pro",
		SetTemperature: 0.5,
		MaxTokens:      4096,
	}))

	if _, err := g.GenerateSet(context.Background(), sampleSpec()); err != nil {
		t.Fatalf("GenerateSet() error = %v", err)
	}
	req, _ := mock.Last()
	if req.Model != "gemini-2.5-pro" || req.Temperature != 0.5 || req.MaxTokens != 4096 {
		t.Errorf("request = model %q temp %v max %d", req.Model, req.Temperature, req.MaxTokens)
	}
}
