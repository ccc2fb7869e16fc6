// Package generation turns teacher options into generation requests and talks to the LLM that writes the problems.
package generation

import (
	"github.com/p-n-ai/pai-worksheet/internal/options"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

// SubTopicSource resolves the sub-topics of a unit. *curriculum.Catalog implements it.
type SubTopicSource interface {
	SubTopics(grade, semester, unit string) ([]string, bool)
}

// Target is one unit the set should cover, with its effective sub-topics.
// SubTopics is empty only when the catalog has no entry for the unit.
type Target struct {
	Semester  string   `json:"semester"`
	Unit      string   `json:"unit"`
	SubTopics []string `json:"subTopics"`
}

// Spec is a validated, fully resolved request for a problem set.
type Spec struct {
	Grade   string                     `json:"grade"`
	Total   int                        `json:"total"`
	Targets []Target                   `json:"targets"`
	Counts  map[problem.Difficulty]int `json:"counts"`
}

// BuildSpec validates o and resolves every selection against the catalog.
// Selections without explicit sub-topics expand to the catalog's full list.
func BuildSpec(catalog SubTopicSource, o options.Options) (Spec, error) {
	if err := o.Validate(); err != nil {
		return Spec{}, err
	}

	spec := Spec{
		Grade:   o.Grade,
		Targets: make([]Target, 0, len(o.Units)),
		Counts:  make(map[problem.Difficulty]int, len(problem.Difficulties)),
	}
	for _, d := range problem.Difficulties {
		spec.Counts[d] = o.Distribution[d]
		spec.Total += o.Distribution[d]
	}

	for _, u := range o.Units {
		subTopics := append([]string(nil), u.SubTopics...)
		if len(subTopics) == 0 && catalog != nil {
			subTopics, _ = catalog.SubTopics(o.Grade, u.Semester, u.Unit)
		}
		spec.Targets = append(spec.Targets, Target{
			Semester:  u.Semester,
			Unit:      u.Unit,
			SubTopics: subTopics,
		})
	}
	return spec, nil
}
