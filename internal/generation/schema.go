package generation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-worksheet/internal/ai"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

func problemDefinition() map[string]any {
	levels := make([]any, 0, len(problem.Difficulties))
	for _, d := range problem.Difficulties {
		levels = append(levels, string(d))
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string", "description": "The math word problem text."},
			"answer": map[string]any{
				"type":        "string",
				"description": "The detailed answer, including the formula and the final result with units (e.g., '3 x 4 = 12. 답: 12개').",
			},
			"grade":      map[string]any{"type": "string"},
			"semester":   map[string]any{"type": "string"},
			"unit":       map[string]any{"type": "string"},
			"subTopic":   map[string]any{"type": "string", "description": "The specific sub-topic from the curriculum."},
			"difficulty": map[string]any{"type": "string", "enum": levels},
		},
		"required": []any{"question", "answer", "grade", "semester", "unit", "subTopic", "difficulty"},
	}
}

func setDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"problems": map[string]any{
				"type":  "array",
				"items": problemDefinition(),
			},
		},
		"required": []any{"problems"},
	}
}

var (
	problemSchema = &ai.Schema{
		Name:        "problem",
		Description: "One Korean elementary math word problem with its worked answer.",
		Definition:  problemDefinition(),
	}
	setSchema = &ai.Schema{
		Name:        "problem_set",
		Description: "A set of Korean elementary math word problems.",
		Definition:  setDefinition(),
	}

	problemValidator = mustCompile(problemSchema)
	setValidator     = mustCompile(setSchema)
)

func mustCompile(s *ai.Schema) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.Definition))
	if err != nil {
		panic(fmt.Sprintf("compile %s schema: %v", s.Name, err))
	}
	return compiled
}

// validate checks a decoded JSON document against a compiled schema.
func validate(schema *gojsonschema.Schema, doc any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema violation: %s", strings.Join(msgs, "; "))
}
