package generation

import (
	"context"
	"fmt"
	"sync"

	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

// StaticGenerator is a deterministic Generator for tests and offline demos.
// It honours the requested counts exactly and never calls out.
type StaticGenerator struct {
	// Err and ReplaceErr, when set, are returned instead of problems.
	Err        error
	ReplaceErr error
	// Gate, when set, blocks every call until it is closed or ctx ends.
	Gate <-chan struct{}

	mu       sync.Mutex
	seq      int
	sets     []Spec
	replaces []problem.Problem
}

// GenerateCalls returns the specs GenerateSet was called with.
func (g *StaticGenerator) GenerateCalls() []Spec {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Spec(nil), g.sets...)
}

// ReplaceCalls returns the problems ReplaceOne was asked to replace.
func (g *StaticGenerator) ReplaceCalls() []problem.Problem {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]problem.Problem(nil), g.replaces...)
}

func (g *StaticGenerator) wait(ctx context.Context) error {
	if g.Gate == nil {
		return ctx.Err()
	}
	select {
	case <-g.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *StaticGenerator) nextID() string {
	g.seq++
	return fmt.Sprintf("static-%d", g.seq)
}

func (g *StaticGenerator) GenerateSet(ctx context.Context, spec Spec) ([]problem.Problem, error) {
	g.mu.Lock()
	g.sets = append(g.sets, spec)
	g.mu.Unlock()

	if err := g.wait(ctx); err != nil {
		return nil, &TransportError{Op: opGenerate, Err: err}
	}
	if g.Err != nil {
		return nil, g.Err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var out []problem.Problem
	n := 0
	for _, d := range problem.Difficulties {
		for i := 0; i < spec.Counts[d]; i++ {
			target := Target{}
			if len(spec.Targets) > 0 {
				target = spec.Targets[n%len(spec.Targets)]
			}
			subTopic := ""
			if len(target.SubTopics) > 0 {
				subTopic = target.SubTopics[n%len(target.SubTopics)]
			}
			n++
			out = append(out, problem.Problem{
				ID:         g.nextID(),
				Question:   fmt.Sprintf("사과가 %d개씩 %d봉지 있습니다. 사과는 모두 몇 개입니까?", n+1, 3),
				Answer:     fmt.Sprintf("%d x 3 = %d. 답: %d개", n+1, (n+1)*3, (n+1)*3),
				Grade:      spec.Grade,
				Semester:   target.Semester,
				Unit:       target.Unit,
				SubTopic:   subTopic,
				Difficulty: d,
			})
		}
	}
	return out, nil
}

func (g *StaticGenerator) ReplaceOne(ctx context.Context, p problem.Problem, d problem.Difficulty) (problem.Problem, error) {
	g.mu.Lock()
	g.replaces = append(g.replaces, p)
	g.mu.Unlock()

	if err := g.wait(ctx); err != nil {
		return problem.Problem{}, &TransportError{Op: opReplace, Err: err}
	}
	if g.ReplaceErr != nil {
		return problem.Problem{}, g.ReplaceErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	np := p
	np.ID = g.nextID()
	np.Difficulty = d
	np.Question = "새 문제: " + p.Question
	return np, nil
}
