package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-worksheet/internal/curriculum"
	"github.com/p-n-ai/pai-worksheet/internal/events"
	"github.com/p-n-ai/pai-worksheet/internal/generation"
	"github.com/p-n-ai/pai-worksheet/internal/options"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
	"github.com/p-n-ai/pai-worksheet/internal/session"
)

// stepGenerator blocks each call until the test releases it, so call ordering can be controlled.
type stepGenerator struct {
	mu    sync.Mutex
	seq   int
	calls chan chan error
}

func newStepGenerator() *stepGenerator {
	return &stepGenerator{calls: make(chan chan error, 8)}
}

func (g *stepGenerator) block() error {
	release := make(chan error)
	g.calls <- release
	return <-release
}

func (g *stepGenerator) id() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("step-%d", g.seq)
}

func (g *stepGenerator) GenerateSet(ctx context.Context, spec generation.Spec) ([]problem.Problem, error) {
	if err := g.block(); err != nil {
		return nil, err
	}
	tag := g.id()
	return []problem.Problem{
		{ID: tag + "-a", Question: tag, Answer: "답: 1", Difficulty: problem.Conceptual},
		{ID: tag + "-b", Question: tag, Answer: "답: 2", Difficulty: problem.Applied},
	}, nil
}

func (g *stepGenerator) ReplaceOne(ctx context.Context, p problem.Problem, d problem.Difficulty) (problem.Problem, error) {
	if err := g.block(); err != nil {
		return problem.Problem{}, err
	}
	np := p
	np.ID = g.id()
	np.Difficulty = d
	return np, nil
}

// nextCall waits for the generator to be entered and returns the channel that releases that call.
func nextCall(t *testing.T, g *stepGenerator) chan<- error {
	t.Helper()
	select {
	case release := <-g.calls:
		return release
	case <-time.After(2 * time.Second):
		t.Fatal("generator call did not start")
		return nil
	}
}

func newTestSession(t *testing.T, gen generation.Generator) (*session.Session, *events.Memory) {
	t.Helper()
	catalog, err := curriculum.Default()
	if err != nil {
		t.Fatalf("curriculum.Default() error = %v", err)
	}
	log := events.NewMemory()
	m := session.NewManager(session.Deps{Generator: gen, Catalog: catalog, Events: log})
	s := m.Create()
	if _, err := s.ToggleUnit("곱셈", "1학기", true); err != nil {
		t.Fatalf("ToggleUnit() error = %v", err)
	}
	return s, log
}

func TestSession_DefaultState(t *testing.T) {
	m := session.NewManager(session.Deps{Generator: &generation.StaticGenerator{}})
	snap := m.Create().Snapshot()

	if snap.Options.Grade != options.DefaultGrade {
		t.Errorf("Grade = %q, want %q", snap.Options.Grade, options.DefaultGrade)
	}
	if len(snap.Problems) != 0 || snap.Generating || len(snap.Replacing) != 0 || snap.Error != "" {
		t.Errorf("unexpected initial snapshot %+v", snap)
	}
}

func TestSession_GenerateReplacesSet(t *testing.T) {
	gen := &generation.StaticGenerator{}
	s, log := newTestSession(t, gen)

	snap, err := s.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(snap.Problems) != 10 {
		t.Errorf("len(Problems) = %d, want 10", len(snap.Problems))
	}
	if snap.Generating {
		t.Error("Generating still set after completion")
	}
	calls := gen.GenerateCalls()
	if len(calls) != 1 || calls[0].Grade != "3학년" || calls[0].Targets[0].Unit != "곱셈" {
		t.Errorf("GenerateCalls() = %+v", calls)
	}
	if got := len(log.OfType(events.TypeGenerateSet)); got != 1 {
		t.Errorf("generate events = %d, want 1", got)
	}
}

func TestSession_GenerateValidationSkipsGenerator(t *testing.T) {
	gen := &generation.StaticGenerator{}
	m := session.NewManager(session.Deps{Generator: gen})
	s := m.Create()

	snap, err := s.Generate(context.Background())
	var verr *options.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Generate() error = %v, want ValidationError", err)
	}
	if snap.Error != verr.Message {
		t.Errorf("Error = %q, want %q", snap.Error, verr.Message)
	}
	if len(gen.GenerateCalls()) != 0 {
		t.Error("generator called despite invalid options")
	}
}

func TestSession_GenerateFailureKeepsPreviousSet(t *testing.T) {
	gen := &generation.StaticGenerator{}
	s, _ := newTestSession(t, gen)

	before, err := s.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	gen.Err = &generation.TransportError{Op: "generate set", Err: errors.New("connection reset")}
	after, err := s.Generate(context.Background())
	if err == nil {
		t.Fatal("Generate() error = nil, want transport error")
	}
	if after.Error != generation.MsgGenerateFailed {
		t.Errorf("Error = %q, want %q", after.Error, generation.MsgGenerateFailed)
	}
	if len(after.Problems) != len(before.Problems) || after.Problems[0].ID != before.Problems[0].ID {
		t.Error("previous set was not preserved")
	}
	if after.Generating {
		t.Error("Generating still set after failure")
	}
}

func TestSession_GenerateConfigurationMessage(t *testing.T) {
	gen := &generation.StaticGenerator{Err: &generation.ConfigurationError{Reason: "no providers"}}
	s, _ := newTestSession(t, gen)

	snap, _ := s.Generate(context.Background())
	if snap.Error != generation.MsgConfiguration {
		t.Errorf("Error = %q, want %q", snap.Error, generation.MsgConfiguration)
	}
}

func TestSession_StaleGenerateIsDiscarded(t *testing.T) {
	gen := newStepGenerator()
	s, _ := newTestSession(t, gen)

	type result struct {
		snap session.Snapshot
		err  error
	}
	first := make(chan result, 1)
	go func() {
		snap, err := s.Generate(context.Background())
		first <- result{snap, err}
	}()
	releaseFirst := nextCall(t, gen)

	second := make(chan result, 1)
	go func() {
		snap, err := s.Generate(context.Background())
		second <- result{snap, err}
	}()
	releaseSecond := nextCall(t, gen)

	// The newer request finishes first, then the older one arrives late.
	releaseSecond <- nil
	r2 := <-second
	if r2.err != nil {
		t.Fatalf("second Generate() error = %v", r2.err)
	}
	releaseFirst <- nil
	r1 := <-first
	if !errors.Is(r1.err, session.ErrSuperseded) {
		t.Fatalf("first Generate() error = %v, want ErrSuperseded", r1.err)
	}

	snap := s.Snapshot()
	if snap.Problems[0].ID != r2.snap.Problems[0].ID {
		t.Errorf("visible set = %s, want newer result %s", snap.Problems[0].ID, r2.snap.Problems[0].ID)
	}
	if snap.Generating {
		t.Error("Generating still set")
	}
}

func TestSession_StaleFailureDoesNotClearNewerGenerate(t *testing.T) {
	gen := newStepGenerator()
	s, _ := newTestSession(t, gen)

	first := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		first <- err
	}()
	releaseFirst := nextCall(t, gen)

	second := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		second <- err
	}()
	releaseSecond := nextCall(t, gen)

	releaseFirst <- errors.New("late failure")
	if err := <-first; !errors.Is(err, session.ErrSuperseded) {
		t.Fatalf("first Generate() error = %v, want ErrSuperseded", err)
	}
	snap := s.Snapshot()
	if !snap.Generating || snap.Error != "" {
		t.Errorf("stale failure leaked into state: generating=%v error=%q", snap.Generating, snap.Error)
	}

	releaseSecond <- nil
	if err := <-second; err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
}

func TestSession_ReplaceKeepsPositionAndForcesDifficulty(t *testing.T) {
	gen := &generation.StaticGenerator{}
	s, log := newTestSession(t, gen)
	before, _ := s.Generate(context.Background())
	target := before.Problems[3]

	np, snap, err := s.Replace(context.Background(), target.ID, problem.Advanced)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if snap.Problems[3].ID != np.ID || np.ID == target.ID {
		t.Errorf("position 3 = %s, want new id %s", snap.Problems[3].ID, np.ID)
	}
	if np.Difficulty != problem.Advanced {
		t.Errorf("Difficulty = %s, want advanced", np.Difficulty)
	}
	if snap.SelectedID != np.ID {
		t.Errorf("SelectedID = %q, want %q", snap.SelectedID, np.ID)
	}
	if len(snap.Replacing) != 0 {
		t.Errorf("Replacing = %v, want empty", snap.Replacing)
	}
	if len(log.OfType(events.TypeReplaceProblem)) != 1 {
		t.Error("replace event not logged")
	}
}

func TestSession_ReplaceErrors(t *testing.T) {
	gen := &generation.StaticGenerator{}
	s, _ := newTestSession(t, gen)
	before, _ := s.Generate(context.Background())

	if _, _, err := s.Replace(context.Background(), "missing", problem.Applied); !errors.Is(err, session.ErrProblemNotFound) {
		t.Errorf("Replace(missing) error = %v, want ErrProblemNotFound", err)
	}

	var verr *options.ValidationError
	if _, _, err := s.Replace(context.Background(), before.Problems[0].ID, "expert"); !errors.As(err, &verr) {
		t.Errorf("Replace(bad difficulty) error = %v, want ValidationError", err)
	}

	gen.ReplaceErr = &generation.MalformedResponseError{Op: "replace problem", Reason: "not json"}
	_, snap, err := s.Replace(context.Background(), before.Problems[0].ID, problem.Applied)
	if err == nil {
		t.Fatal("Replace() error = nil")
	}
	if snap.Error != generation.MsgReplaceFailed {
		t.Errorf("Error = %q, want %q", snap.Error, generation.MsgReplaceFailed)
	}
	if snap.Problems[0].ID != before.Problems[0].ID {
		t.Error("failed replace modified the set")
	}
	if len(snap.Replacing) != 0 {
		t.Errorf("Replacing = %v after failure", snap.Replacing)
	}
}

func TestSession_ReplaceTargetRemovedInFlight(t *testing.T) {
	gen := newStepGenerator()
	s, _ := newTestSession(t, gen)

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		done <- err
	}()
	nextCall(t, gen) <- nil
	if err := <-done; err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	target := s.Snapshot().Problems[0]

	replaced := make(chan error, 1)
	go func() {
		_, _, err := s.Replace(context.Background(), target.ID, problem.Applied)
		replaced <- err
	}()
	releaseReplace := nextCall(t, gen)

	if snap := s.Snapshot(); len(snap.Replacing) != 1 || snap.Replacing[0] != target.ID {
		t.Errorf("Replacing = %v, want [%s]", snap.Replacing, target.ID)
	}
	if _, _, err := s.Replace(context.Background(), target.ID, problem.Applied); !errors.Is(err, session.ErrReplacePending) {
		t.Errorf("second Replace() error = %v, want ErrReplacePending", err)
	}
	if _, err := s.Remove(context.Background(), target.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	releaseReplace <- nil
	if err := <-replaced; !errors.Is(err, session.ErrTargetGone) {
		t.Fatalf("Replace() error = %v, want ErrTargetGone", err)
	}
	snap := s.Snapshot()
	if len(snap.Problems) != 1 || snap.Problems[0].ID == target.ID {
		t.Errorf("Problems = %+v", snap.Problems)
	}
	if len(snap.Replacing) != 0 {
		t.Errorf("Replacing = %v, want empty", snap.Replacing)
	}
}

func TestSession_RemoveAndSelect(t *testing.T) {
	s, log := newTestSession(t, &generation.StaticGenerator{})
	before, _ := s.Generate(context.Background())
	id := before.Problems[2].ID

	if snap := s.Select(id); snap.SelectedID != id {
		t.Errorf("SelectedID = %q, want %q", snap.SelectedID, id)
	}
	if snap := s.Select(id); snap.SelectedID != "" {
		t.Errorf("second Select() SelectedID = %q, want empty", snap.SelectedID)
	}

	s.Select(id)
	snap, err := s.Remove(context.Background(), id)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(snap.Problems) != len(before.Problems)-1 || snap.SelectedID != "" {
		t.Errorf("after Remove: len=%d selected=%q", len(snap.Problems), snap.SelectedID)
	}
	if _, err := s.Remove(context.Background(), id); !errors.Is(err, session.ErrProblemNotFound) {
		t.Errorf("second Remove() error = %v, want ErrProblemNotFound", err)
	}
	if len(log.OfType(events.TypeRemoveProblem)) != 1 {
		t.Error("remove event count != 1")
	}
}

func TestSession_OptionMutators(t *testing.T) {
	s, _ := newTestSession(t, &generation.StaticGenerator{})

	snap := s.SetSubTopics("곱셈", "1학기", []string{"(몇십)×(몇)"})
	if got := snap.Options.Units[0].SubTopics; len(got) != 1 {
		t.Errorf("SubTopics = %v", got)
	}

	if _, err := s.SetDifficultyCount(problem.Advanced, 3); err != nil {
		t.Fatalf("SetDifficultyCount() error = %v", err)
	}
	if got := s.Snapshot().Options.Total(); got != 13 {
		t.Errorf("Total() = %d, want 13", got)
	}

	snap = s.SetGrade("5학년")
	if snap.Options.Grade != "5학년" || len(snap.Options.Units) != 0 {
		t.Errorf("after SetGrade: %+v", snap.Options)
	}
}

func TestSession_Export(t *testing.T) {
	s, log := newTestSession(t, &generation.StaticGenerator{})

	if _, _, err := s.Export(context.Background(), session.FormatDOCX); err == nil {
		t.Error("Export() of empty set error = nil")
	}

	s.Generate(context.Background())
	for _, format := range []session.Format{session.FormatDOCX, session.FormatXLSX} {
		data, name, err := s.Export(context.Background(), format)
		if err != nil {
			t.Fatalf("Export(%s) error = %v", format, err)
		}
		if len(data) < 4 || string(data[:2]) != "PK" {
			t.Errorf("Export(%s) is not a zip archive", format)
		}
		if name == "" {
			t.Errorf("Export(%s) filename empty", format)
		}
	}
	if _, _, err := s.Export(context.Background(), "pdf"); err == nil {
		t.Error("Export(pdf) error = nil")
	}
	if got := len(log.OfType(events.TypeExport)); got != 2 {
		t.Errorf("export events = %d, want 2", got)
	}
}

func TestSession_ToggleUnitChecksCurrentGrade(t *testing.T) {
	s, _ := newTestSession(t, &generation.StaticGenerator{})

	snap, err := s.ToggleUnit("비와 비율", "1학기", true)
	var verr *options.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("ToggleUnit(6학년 unit) error = %v, want ValidationError", err)
	}
	if len(snap.Options.Units) != 1 || snap.Options.Units[0].Unit != "곱셈" {
		t.Errorf("Units = %+v, want only 곱셈", snap.Options.Units)
	}

	s.SetGrade("6학년")
	snap, err = s.ToggleUnit("비와 비율", "1학기", true)
	if err != nil {
		t.Fatalf("ToggleUnit() after SetGrade error = %v", err)
	}
	if len(snap.Options.Units) != 1 || snap.Options.Units[0].Unit != "비와 비율" {
		t.Errorf("Units = %+v", snap.Options.Units)
	}

	if _, err := s.ToggleUnit("없는 단원", "1학기", false); err != nil {
		t.Errorf("deselecting an unknown unit error = %v", err)
	}
}

func TestSession_SubscriberSeesFinalStateUnderConcurrentMutations(t *testing.T) {
	s, _ := newTestSession(t, &generation.StaticGenerator{})
	ch, cancel := s.Subscribe()
	defer cancel()

	const writers = 32
	for round := 0; round < 200; round++ {
		var wg sync.WaitGroup
		for n := 0; n < writers; n++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				if _, err := s.SetDifficultyCount(problem.Advanced, n); err != nil {
					t.Errorf("SetDifficultyCount() error = %v", err)
				}
			}(n)
		}
		wg.Wait()

		var latest session.Snapshot
		select {
		case latest = <-ch:
		case <-time.After(time.Second):
			t.Fatal("no snapshot delivered")
		}
		want := s.Snapshot()
		if got, wantN := latest.Options.Distribution[problem.Advanced], want.Options.Distribution[problem.Advanced]; got != wantN {
			t.Fatalf("round %d: subscriber has Advanced=%d, store has %d", round, got, wantN)
		}
		if !latest.UpdatedAt.Equal(want.UpdatedAt) {
			t.Fatalf("round %d: subscriber UpdatedAt %v, store %v", round, latest.UpdatedAt, want.UpdatedAt)
		}
	}
}

func TestSession_SubscribeReceivesLatest(t *testing.T) {
	s, _ := newTestSession(t, &generation.StaticGenerator{})
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SetGrade("4학년")
	s.SetGrade("6학년")

	select {
	case snap := <-ch:
		if snap.Options.Grade != "6학년" {
			t.Errorf("Grade = %q, want the newest snapshot", snap.Options.Grade)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
}
