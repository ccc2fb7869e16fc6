// Package curriculum provides the static grade → semester → unit → sub-topic catalog.
package curriculum

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var defaultData embed.FS

// Catalog is an immutable curriculum lookup. It is safe for concurrent reads.
type Catalog struct {
	grades []Grade
	units  map[unitKey][]string
}

type unitKey struct {
	grade, semester, unit string
}

// Key normalises a catalog name so Hangul typed in decomposed form still matches.
func Key(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Default loads the catalog shipped with the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(defaultData, "data")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// NewLoader loads the catalog from rootDir, or the built-in catalog when rootDir is empty.
func NewLoader(rootDir string) (*Catalog, error) {
	if rootDir == "" {
		return Default()
	}
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loading curriculum: %s is not a directory", rootDir)
	}
	return Load(os.DirFS(rootDir))
}

// Load reads every grade YAML file in fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{units: make(map[unitKey][]string)}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch path.Ext(p) {
		case ".yaml", ".yml":
			return c.loadGrade(fsys, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	sort.SliceStable(c.grades, func(i, j int) bool {
		return c.grades[i].Order < c.grades[j].Order
	})

	slog.Info("curriculum loaded", "grades", len(c.grades), "units", len(c.units))
	return c, nil
}

func (c *Catalog) loadGrade(fsys fs.FS, p string) error {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return err
	}

	var g Grade
	if err := yaml.Unmarshal(data, &g); err != nil {
		slog.Warn("skipping invalid curriculum YAML", "path", p, "error", err)
		return nil
	}
	if g.Name == "" {
		return nil // Not a grade file
	}

	g.Name = Key(g.Name)
	for _, existing := range c.grades {
		if existing.Name == g.Name {
			return fmt.Errorf("grade %q defined twice (%s)", g.Name, p)
		}
	}

	for si := range g.Semesters {
		s := &g.Semesters[si]
		s.Name = Key(s.Name)
		for ui := range s.Units {
			u := &s.Units[ui]
			u.Name = Key(u.Name)
			for ti := range u.SubTopics {
				u.SubTopics[ti] = Key(u.SubTopics[ti])
			}
			c.units[unitKey{g.Name, s.Name, u.Name}] = u.SubTopics
		}
	}

	c.grades = append(c.grades, g)
	return nil
}

// Grades returns all grades in catalog order.
func (c *Catalog) Grades() []Grade {
	return append([]Grade{}, c.grades...)
}

// GradeNames returns the grade names in catalog order.
func (c *Catalog) GradeNames() []string {
	names := make([]string, len(c.grades))
	for i, g := range c.grades {
		names[i] = g.Name
	}
	return names
}

// Grade returns a grade by name.
func (c *Catalog) Grade(name string) (Grade, bool) {
	name = Key(name)
	for _, g := range c.grades {
		if g.Name == name {
			return g, true
		}
	}
	return Grade{}, false
}

// SubTopics returns a copy of the ordered sub-topics of a unit.
func (c *Catalog) SubTopics(grade, semester, unit string) ([]string, bool) {
	topics, ok := c.units[unitKey{Key(grade), Key(semester), Key(unit)}]
	if !ok {
		return nil, false
	}
	return append([]string{}, topics...), true
}
