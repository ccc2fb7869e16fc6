package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/pai-worksheet/internal/generation"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

func TestStaticGenerator_HonoursCounts(t *testing.T) {
	g := &generation.StaticGenerator{}
	spec := sampleSpec()
	spec.Counts[problem.Advanced] = 2
	spec.Total = 4

	got, err := g.GenerateSet(context.Background(), spec)
	if err != nil {
		t.Fatalf("GenerateSet() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	counts := map[problem.Difficulty]int{}
	ids := map[string]bool{}
	for _, p := range got {
		counts[p.Difficulty]++
		if ids[p.ID] {
			t.Errorf("duplicate id %q", p.ID)
		}
		ids[p.ID] = true
	}
	if counts[problem.Conceptual] != 1 || counts[problem.Applied] != 1 || counts[problem.Advanced] != 2 {
		t.Errorf("counts = %v", counts)
	}
	if len(g.GenerateCalls()) != 1 {
		t.Errorf("GenerateCalls() = %d, want 1", len(g.GenerateCalls()))
	}
}

func TestStaticGenerator_ReplaceOne(t *testing.T) {
	g := &generation.StaticGenerator{}
	old := problem.Problem{ID: "old", Question: "q", Unit: "곱셈", Difficulty: problem.Conceptual}

	got, err := g.ReplaceOne(context.Background(), old, problem.Advanced)
	if err != nil {
		t.Fatalf("ReplaceOne() error = %v", err)
	}
	if got.ID == old.ID || got.Difficulty != problem.Advanced || got.Unit != "곱셈" {
		t.Errorf("ReplaceOne() = %+v", got)
	}
	if calls := g.ReplaceCalls(); len(calls) != 1 || calls[0].ID != "old" {
		t.Errorf("ReplaceCalls() = %+v", calls)
	}
}

func TestStaticGenerator_Errors(t *testing.T) {
	boom := errors.New("boom")
	g := &generation.StaticGenerator{Err: boom, ReplaceErr: boom}

	if _, err := g.GenerateSet(context.Background(), sampleSpec()); !errors.Is(err, boom) {
		t.Errorf("GenerateSet() error = %v", err)
	}
	if _, err := g.ReplaceOne(context.Background(), problem.Problem{}, problem.Applied); !errors.Is(err, boom) {
		t.Errorf("ReplaceOne() error = %v", err)
	}
}

func TestStaticGenerator_GateHonoursContext(t *testing.T) {
	gate := make(chan struct{})
	g := &generation.StaticGenerator{Gate: gate}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.GenerateSet(ctx, sampleSpec())
	var terr *generation.TransportError
	if !errors.As(err, &terr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GenerateSet() error = %v, want TransportError wrapping deadline", err)
	}

	close(gate)
	if _, err := g.GenerateSet(context.Background(), sampleSpec()); err != nil {
		t.Errorf("GenerateSet() after gate opened error = %v", err)
	}
}
