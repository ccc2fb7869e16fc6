// Package options holds the mutable generation settings a teacher edits before generating a set.
package options

import (
	"fmt"

	"github.com/p-n-ai/pai-worksheet/internal/curriculum"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

// MaxCountPerDifficulty is the upper bound the UI offers per difficulty tier.
const MaxCountPerDifficulty = 15

// DefaultGrade is the grade a new session starts with.
const DefaultGrade = "3학년"

const (
	msgNoUnits    = "하나 이상의 단원을 선택해주세요."
	msgNoProblems = "하나 이상의 문제를 생성하도록 설정해주세요."
)

// ValidationError is a local precondition failure. Message is shown to the user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UnitSelection is a chosen unit. Empty SubTopics means every sub-topic of the unit.
type UnitSelection struct {
	Unit      string   `json:"unit"`
	Semester  string   `json:"semester"`
	SubTopics []string `json:"subTopics"`
}

// Distribution maps each difficulty tier to the number of problems requested.
type Distribution map[problem.Difficulty]int

// Total returns the sum of all counts.
func (d Distribution) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}

// Options is the selection state of one session.
type Options struct {
	Grade        string          `json:"grade"`
	Units        []UnitSelection `json:"units"`
	Distribution Distribution    `json:"difficultyDistribution"`
}

// Default returns the settings a new session starts with.
func Default() Options {
	return Options{
		Grade: DefaultGrade,
		Units: []UnitSelection{},
		Distribution: Distribution{
			problem.Conceptual: 5,
			problem.Applied:    5,
			problem.Advanced:   0,
		},
	}
}

// SetGrade replaces the grade and drops all unit selections, which are grade-scoped.
func (o *Options) SetGrade(grade string) {
	o.Grade = curriculum.Key(grade)
	o.Units = []UnitSelection{}
}

// ToggleUnit adds or removes the (unit, semester) selection. It is idempotent.
func (o *Options) ToggleUnit(unit, semester string, selected bool) {
	unit, semester = curriculum.Key(unit), curriculum.Key(semester)
	pos := o.find(unit, semester)

	switch {
	case selected && pos < 0:
		o.Units = append(o.Units, UnitSelection{Unit: unit, Semester: semester, SubTopics: []string{}})
	case !selected && pos >= 0:
		o.Units = append(o.Units[:pos:pos], o.Units[pos+1:]...)
	}
}

// SetSubTopics replaces the sub-topics of a selected unit; it does nothing when the unit is not selected.
func (o *Options) SetSubTopics(unit, semester string, subTopics []string) {
	pos := o.find(curriculum.Key(unit), curriculum.Key(semester))
	if pos < 0 {
		return
	}

	seen := make(map[string]bool, len(subTopics))
	topics := make([]string, 0, len(subTopics))
	for _, t := range subTopics {
		t = curriculum.Key(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		topics = append(topics, t)
	}
	o.Units[pos].SubTopics = topics
}

// SetDifficultyCount sets the count for one tier. Range clamping is the caller's job.
func (o *Options) SetDifficultyCount(level problem.Difficulty, count int) error {
	if !level.Valid() {
		return &ValidationError{Message: fmt.Sprintf("알 수 없는 난이도입니다: %s", level)}
	}
	if count < 0 {
		return &ValidationError{Message: "문제 수는 0 이상이어야 합니다."}
	}
	if o.Distribution == nil {
		o.Distribution = Distribution{}
	}
	o.Distribution[level] = count
	return nil
}

// Total returns the number of problems the settings ask for.
func (o Options) Total() int {
	return o.Distribution.Total()
}

// Validate checks the preconditions for a generation request.
func (o Options) Validate() error {
	if len(o.Units) == 0 {
		return &ValidationError{Message: msgNoUnits}
	}
	if o.Total() <= 0 {
		return &ValidationError{Message: msgNoProblems}
	}
	return nil
}

// Clone returns a deep copy.
func (o Options) Clone() Options {
	c := Options{
		Grade:        o.Grade,
		Units:        make([]UnitSelection, len(o.Units)),
		Distribution: make(Distribution, len(o.Distribution)),
	}
	for i, u := range o.Units {
		c.Units[i] = UnitSelection{
			Unit:      u.Unit,
			Semester:  u.Semester,
			SubTopics: append([]string{}, u.SubTopics...),
		}
	}
	for k, v := range o.Distribution {
		c.Distribution[k] = v
	}
	return c
}

// Clamp limits a requested count to the range the UI offers.
func Clamp(count int) int {
	switch {
	case count < 0:
		return 0
	case count > MaxCountPerDifficulty:
		return MaxCountPerDifficulty
	default:
		return count
	}
}

func (o *Options) find(unit, semester string) int {
	for i, u := range o.Units {
		if u.Unit == unit && u.Semester == semester {
			return i
		}
	}
	return -1
}
