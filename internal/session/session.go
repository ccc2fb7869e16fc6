// Package session owns the per-teacher worksheet state and orchestrates generation against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-worksheet/internal/events"
	"github.com/p-n-ai/pai-worksheet/internal/export"
	"github.com/p-n-ai/pai-worksheet/internal/generation"
	"github.com/p-n-ai/pai-worksheet/internal/options"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

var (
	// ErrSuperseded is returned to a bulk generate whose result arrived after a newer one started.
	ErrSuperseded = errors.New("session: superseded by a newer generate")
	// ErrTargetGone is returned when the problem being replaced left the set while the request was in flight.
	ErrTargetGone = errors.New("session: problem no longer in the set")
	// ErrReplacePending is returned when the same problem is already being replaced.
	ErrReplacePending = errors.New("session: replace already in progress")
	// ErrProblemNotFound is returned for ids that are not in the set.
	ErrProblemNotFound = errors.New("session: problem not found")
)

// Format is an export file format.
type Format string

const (
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
)

// Deps are the collaborators a session needs.
type Deps struct {
	Generator generation.Generator
	Catalog   generation.SubTopicSource
	Events    events.Logger
}

// Snapshot is a consistent copy of a session for rendering and export.
type Snapshot struct {
	ID         string            `json:"id"`
	Options    options.Options   `json:"options"`
	Problems   []problem.Problem `json:"problems"`
	SelectedID string            `json:"selectedId,omitempty"`
	Generating bool              `json:"generating"`
	Replacing  []string          `json:"replacing"`
	Generation uint64            `json:"generation"`
	Error      string            `json:"error,omitempty"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Session is one teacher's worksheet. The mutex guards state only; it is never held across generator calls.
type Session struct {
	id   string
	deps Deps
	now  func() time.Time

	mu         sync.Mutex
	opts       options.Options
	set        *problem.Set
	generation uint64
	generating bool
	replacing  map[string]bool
	lastErr    string
	updatedAt  time.Time

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

func newSession(id string, deps Deps, now func() time.Time) *Session {
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &Session{
		id:        id,
		deps:      deps,
		now:       now,
		opts:      options.Default(),
		set:       problem.NewSet(),
		replacing: make(map[string]bool),
		updatedAt: now(),
		subs:      make(map[int]chan Snapshot),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns a consistent copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	selected, _ := s.set.Selected()
	replacing := make([]string, 0, len(s.replacing))
	for _, p := range s.set.Problems() {
		if s.replacing[p.ID] {
			replacing = append(replacing, p.ID)
		}
	}
	return Snapshot{
		ID:         s.id,
		Options:    s.opts.Clone(),
		Problems:   s.set.Problems(),
		SelectedID: selected,
		Generating: s.generating,
		Replacing:  replacing,
		Generation: s.generation,
		Error:      s.lastErr,
		UpdatedAt:  s.updatedAt,
	}
}

// lastActive reports when the session last changed.
func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// mutate applies fn and publishes the resulting snapshot, both under the lock.
func (s *Session) mutate(fn func() error) (Snapshot, error) {
	s.mu.Lock()
	err := fn()
	s.updatedAt = s.now()
	snap := s.snapshotLocked()
	s.publish(snap)
	s.mu.Unlock()
	return snap, err
}

// SetGrade switches grade and clears the unit selection.
func (s *Session) SetGrade(grade string) Snapshot {
	snap, _ := s.mutate(func() error {
		s.opts.SetGrade(grade)
		return nil
	})
	return snap
}

// ToggleUnit selects or deselects a unit. Selecting a unit the catalog has no entry for
// under the current grade is a validation error and leaves the options unchanged.
func (s *Session) ToggleUnit(unit, semester string, selected bool) (Snapshot, error) {
	return s.mutate(func() error {
		if selected && s.deps.Catalog != nil {
			if _, ok := s.deps.Catalog.SubTopics(s.opts.Grade, semester, unit); !ok {
				return &options.ValidationError{Message: "알 수 없는 단원입니다: " + unit}
			}
		}
		s.opts.ToggleUnit(unit, semester, selected)
		return nil
	})
}

// SetSubTopics narrows a selected unit to the given sub-topics.
func (s *Session) SetSubTopics(unit, semester string, subTopics []string) Snapshot {
	snap, _ := s.mutate(func() error {
		s.opts.SetSubTopics(unit, semester, subTopics)
		return nil
	})
	return snap
}

// SetDifficultyCount sets how many problems of a tier to generate.
func (s *Session) SetDifficultyCount(level problem.Difficulty, count int) (Snapshot, error) {
	return s.mutate(func() error {
		return s.opts.SetDifficultyCount(level, count)
	})
}

// Select toggles the detail cursor.
func (s *Session) Select(id string) Snapshot {
	snap, _ := s.mutate(func() error {
		s.set.Select(id)
		return nil
	})
	return snap
}

// Generate requests a new set for the current options. The visible set is kept until the new one arrives,
// and a result is applied only if no newer generate started in the meantime.
func (s *Session) Generate(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	spec, err := generation.BuildSpec(s.deps.Catalog, s.opts)
	if err != nil {
		s.lastErr = generation.UserMessage(err, generation.MsgGenerateFailed)
		snap := s.snapshotLocked()
		s.publish(snap)
		s.mu.Unlock()
		return snap, err
	}
	s.generation++
	token := s.generation
	s.generating = true
	s.lastErr = ""
	s.updatedAt = s.now()
	snap := s.snapshotLocked()
	s.publish(snap)
	s.mu.Unlock()

	log := slog.With("session_id", s.id, "generation", token)
	start := time.Now()

	problems, genErr := s.deps.Generator.GenerateSet(generation.WithRequester(ctx, s.id), spec)

	s.mu.Lock()
	if token != s.generation {
		s.mu.Unlock()
		log.Info("discarding superseded generate result", "error", genErr)
		return s.Snapshot(), ErrSuperseded
	}
	s.generating = false
	s.updatedAt = s.now()
	if genErr == nil {
		if err := s.set.ReplaceAll(problems); err != nil {
			genErr = &generation.MalformedResponseError{Op: "generate set", Reason: "store problems", Err: err}
		}
	}
	if genErr != nil {
		s.lastErr = generation.UserMessage(genErr, generation.MsgGenerateFailed)
	}
	snap = s.snapshotLocked()
	s.publish(snap)
	s.mu.Unlock()

	if genErr != nil {
		log.Error("generate failed", "error", genErr)
		return snap, genErr
	}

	log.Info("problem set generated",
		"count", len(problems),
		"requested", spec.Total,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.logEvent(ctx, events.TypeGenerateSet, map[string]any{
		"grade":     spec.Grade,
		"requested": spec.Total,
		"received":  len(problems),
		"units":     len(spec.Targets),
	})
	return snap, nil
}

// Replace swaps one problem for a newly generated one of difficulty d, keeping its position.
func (s *Session) Replace(ctx context.Context, id string, d problem.Difficulty) (problem.Problem, Snapshot, error) {
	if !d.Valid() {
		return problem.Problem{}, s.Snapshot(), &options.ValidationError{Message: fmt.Sprintf("알 수 없는 난이도입니다: %s", d)}
	}

	s.mu.Lock()
	target, ok := s.set.Get(id)
	if !ok {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return problem.Problem{}, snap, ErrProblemNotFound
	}
	if s.replacing[id] {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return problem.Problem{}, snap, ErrReplacePending
	}
	s.replacing[id] = true
	s.lastErr = ""
	snap := s.snapshotLocked()
	s.publish(snap)
	s.mu.Unlock()

	log := slog.With("session_id", s.id, "problem_id", id)

	np, genErr := s.deps.Generator.ReplaceOne(generation.WithRequester(ctx, s.id), target, d)

	s.mu.Lock()
	delete(s.replacing, id)
	s.updatedAt = s.now()
	var err error
	switch {
	case genErr != nil:
		s.lastErr = generation.UserMessage(genErr, generation.MsgReplaceFailed)
		err = genErr
	default:
		replaced, rerr := s.set.ReplaceByID(id, np)
		switch {
		case rerr != nil:
			s.lastErr = generation.MsgReplaceFailed
			err = rerr
		case !replaced:
			err = ErrTargetGone
		}
	}
	snap = s.snapshotLocked()
	s.publish(snap)
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrTargetGone) {
			log.Info("discarding replacement for removed problem")
		} else {
			log.Error("replace failed", "error", err)
		}
		return problem.Problem{}, snap, err
	}

	log.Info("problem replaced", "new_problem_id", np.ID, "difficulty", string(d))
	s.logEvent(ctx, events.TypeReplaceProblem, map[string]any{
		"old_id":     id,
		"new_id":     np.ID,
		"difficulty": string(d),
		"unit":       np.Unit,
	})
	return np, snap, nil
}

// Remove deletes a problem from the set.
func (s *Session) Remove(ctx context.Context, id string) (Snapshot, error) {
	snap, err := s.mutate(func() error {
		if !s.set.RemoveByID(id) {
			return ErrProblemNotFound
		}
		return nil
	})
	if err != nil {
		return snap, err
	}
	s.logEvent(ctx, events.TypeRemoveProblem, map[string]any{"problem_id": id})
	return snap, nil
}

// Export renders the current set.
func (s *Session) Export(ctx context.Context, format Format) ([]byte, string, error) {
	problems := s.Snapshot().Problems

	var (
		data []byte
		name string
		err  error
	)
	switch format {
	case FormatDOCX:
		data, err = export.DOCX(problems)
		name = export.DOCXFilename
	case FormatXLSX:
		data, err = export.XLSX(problems)
		name = export.XLSXFilename
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, "", err
	}

	s.logEvent(ctx, events.TypeExport, map[string]any{
		"format":   string(format),
		"problems": len(problems),
		"bytes":    len(data),
	})
	return data, name, nil
}

func (s *Session) logEvent(ctx context.Context, eventType string, data map[string]any) {
	// Audit failures never fail the user action.
	if err := s.deps.Events.LogEvent(context.WithoutCancel(ctx), events.Event{
		SessionID: s.id,
		Type:      eventType,
		Data:      data,
	}); err != nil {
		slog.Warn("failed to log event", "session_id", s.id, "type", eventType, "error", err)
	}
}

// Subscribe returns a channel that receives the latest snapshot after every change.
// Slow readers only see the newest snapshot. Call the returned func to unsubscribe.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// publish fans snap out to subscribers. Callers hold mu, so snapshots reach
// subscribers in the order they were taken.
func (s *Session) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot in favour of the new one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// closeSubscribers ends every subscription; used when the session expires.
func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
