package problem

import (
	"errors"
	"fmt"
)

// ErrDuplicateID is returned when a mutation would store the same id twice.
var ErrDuplicateID = errors.New("duplicate problem id")

// Set is an ordered collection of problems with an id index and a single selection cursor.
// It is not safe for concurrent use; the owning session serialises access.
type Set struct {
	items    []Problem
	index    map[string]int
	selected string
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// ReplaceAll swaps the whole set and clears the selection cursor.
func (s *Set) ReplaceAll(problems []Problem) error {
	index := make(map[string]int, len(problems))
	for i, p := range problems {
		if p.ID == "" {
			return fmt.Errorf("problem at position %d has no id", i)
		}
		if _, dup := index[p.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		index[p.ID] = i
	}

	s.items = append([]Problem(nil), problems...)
	s.index = index
	s.selected = ""
	return nil
}

// ReplaceByID substitutes p for the problem with the given id at the same position and
// moves the cursor to p. It reports false when no problem has that id.
func (s *Set) ReplaceByID(id string, p Problem) (bool, error) {
	pos, ok := s.index[id]
	if !ok {
		return false, nil
	}
	if p.ID == "" {
		return false, fmt.Errorf("replacement for %s has no id", id)
	}
	if other, dup := s.index[p.ID]; dup && other != pos {
		return false, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}

	delete(s.index, id)
	s.items[pos] = p
	s.index[p.ID] = pos
	s.selected = p.ID
	return true, nil
}

// RemoveByID deletes the problem with the given id, shifting later entries up.
func (s *Set) RemoveByID(id string) bool {
	pos, ok := s.index[id]
	if !ok {
		return false
	}

	s.items = append(s.items[:pos], s.items[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.items); i++ {
		s.index[s.items[i].ID] = i
	}
	if s.selected == id {
		s.selected = ""
	}
	return true
}

// Select toggles the cursor: selecting the active id collapses it, an empty id clears it.
// Unknown ids are ignored.
func (s *Set) Select(id string) {
	if id == "" || s.selected == id {
		s.selected = ""
		return
	}
	if _, ok := s.index[id]; ok {
		s.selected = id
	}
}

// ClearSelection drops the cursor.
func (s *Set) ClearSelection() {
	s.selected = ""
}

// Selected returns the active cursor.
func (s *Set) Selected() (string, bool) {
	return s.selected, s.selected != ""
}

// Get returns the problem with the given id.
func (s *Set) Get(id string) (Problem, bool) {
	pos, ok := s.index[id]
	if !ok {
		return Problem{}, false
	}
	return s.items[pos], true
}

// IndexOf returns the position of id or -1.
func (s *Set) IndexOf(id string) int {
	if pos, ok := s.index[id]; ok {
		return pos
	}
	return -1
}

// Contains reports whether id is in the set.
func (s *Set) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of problems.
func (s *Set) Len() int {
	return len(s.items)
}

// Problems returns a copy of the problems in order.
func (s *Set) Problems() []Problem {
	return append([]Problem{}, s.items...)
}
