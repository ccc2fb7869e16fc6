// Package problem holds the generated word problem records and the ordered set a session works on.
package problem

import "fmt"

// Difficulty is the tier a problem was generated for.
type Difficulty string

const (
	Conceptual Difficulty = "Conceptual"
	Applied    Difficulty = "Applied"
	Advanced   Difficulty = "Advanced"
)

// Difficulties lists every tier in display order.
var Difficulties = []Difficulty{Conceptual, Applied, Advanced}

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case Conceptual, Applied, Advanced:
		return true
	default:
		return false
	}
}

// Label returns the Korean label shown next to the tier.
func (d Difficulty) Label() string {
	switch d {
	case Conceptual:
		return "개념 이해"
	case Applied:
		return "적용"
	case Advanced:
		return "심화"
	default:
		return string(d)
	}
}

// Definition describes the tier to the generator.
func (d Difficulty) Definition() string {
	switch d {
	case Conceptual:
		return "단원의 핵심 개념과 계산 방법을 그대로 확인하는 기본 문제. 한 단계의 계산으로 해결된다."
	case Applied:
		return "일상생활 상황에 개념을 적용하는 문제. 두 단계 정도의 계산과 문장 해석이 필요하다."
	case Advanced:
		return "여러 개념을 연결하거나 조건을 따져야 하는 사고력 문제. 세 단계 이상의 추론이 필요하다."
	default:
		return ""
	}
}

// ParseDifficulty converts a wire value to a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// Problem is one generated word problem. Replacement creates a new Problem with a new ID.
type Problem struct {
	ID         string     `json:"id"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Grade      string     `json:"grade"`
	Semester   string     `json:"semester"`
	Unit       string     `json:"unit"`
	SubTopic   string     `json:"subTopic"`
	Difficulty Difficulty `json:"difficulty"`
}
