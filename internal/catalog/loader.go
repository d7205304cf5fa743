// Package catalog loads the read-only content catalog (subjects, questions,
// materials, mini-games and avatar accessories) from YAML files.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrInvalidEntry is returned for catalog entries that fail validation.
var ErrInvalidEntry = errors.New("invalid catalog entry")

// Catalog holds immutable lookup tables keyed by ID. The zero value is not
// usable; build one with NewLoader or FromBundles.
type Catalog struct {
	subjects    map[string]Subject
	questions   map[string]Question
	materials   map[string]Material
	miniGames   map[string]MiniGame
	accessories map[string]Accessory

	// insertion order, so lookups by subject are stable
	questionOrder  []string
	materialOrder  []string
	miniGameOrder  []string
	accessoryOrder []string

	mu sync.RWMutex
}

func newCatalog() *Catalog {
	return &Catalog{
		subjects:    make(map[string]Subject),
		questions:   make(map[string]Question),
		materials:   make(map[string]Material),
		miniGames:   make(map[string]MiniGame),
		accessories: make(map[string]Accessory),
	}
}

// NewLoader walks rootDir and loads every .yaml/.yml file as a Bundle.
// Unparseable files and invalid entries are skipped with a warning.
func NewLoader(rootDir string) (*Catalog, error) {
	c := newCatalog()

	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return c.loadFile(path)
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded",
		"subjects", len(c.subjects),
		"questions", len(c.questions),
		"materials", len(c.materials),
		"mini_games", len(c.miniGames),
		"accessories", len(c.accessories),
	)
	return c, nil
}

// FromBundles builds a catalog from in-memory bundles. Unlike NewLoader it
// fails on the first invalid entry.
func FromBundles(bundles ...Bundle) (*Catalog, error) {
	c := newCatalog()
	for _, b := range bundles {
		if errs := c.add(b); len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
	}
	return c, nil
}

func (c *Catalog) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		slog.Warn("skipping invalid catalog YAML", "path", path, "error", err)
		return nil
	}

	for _, err := range c.add(b) {
		slog.Warn("skipping catalog entry", "path", path, "error", err)
	}
	return nil
}

// add merges a bundle, returning one error per rejected entry.
func (c *Catalog) add(b Bundle) []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, s := range b.Subjects {
		if err := validateEntry(s); err != nil {
			errs = append(errs, fmt.Errorf("subject %q: %w", s.ID, err))
			continue
		}
		c.subjects[s.ID] = s
	}
	for _, q := range b.Questions {
		if err := validateQuestion(q); err != nil {
			errs = append(errs, fmt.Errorf("question %q: %w", q.ID, err))
			continue
		}
		if _, exists := c.questions[q.ID]; !exists {
			c.questionOrder = append(c.questionOrder, q.ID)
		}
		c.questions[q.ID] = q
	}
	for _, m := range b.Materials {
		if err := validateEntry(m); err != nil {
			errs = append(errs, fmt.Errorf("material %q: %w", m.ID, err))
			continue
		}
		if _, exists := c.materials[m.ID]; !exists {
			c.materialOrder = append(c.materialOrder, m.ID)
		}
		c.materials[m.ID] = withSections(m)
	}
	for _, g := range b.MiniGames {
		if err := validateEntry(g); err != nil {
			errs = append(errs, fmt.Errorf("mini game %q: %w", g.ID, err))
			continue
		}
		if _, exists := c.miniGames[g.ID]; !exists {
			c.miniGameOrder = append(c.miniGameOrder, g.ID)
		}
		c.miniGames[g.ID] = g
	}
	for _, a := range b.Accessories {
		if err := validateEntry(a); err != nil {
			errs = append(errs, fmt.Errorf("accessory %q: %w", a.ID, err))
			continue
		}
		if _, exists := c.accessories[a.ID]; !exists {
			c.accessoryOrder = append(c.accessoryOrder, a.ID)
		}
		c.accessories[a.ID] = a
	}
	return errs
}

// Subjects returns all subjects sorted by ID.
func (c *Catalog) Subjects() []Subject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Subject, 0, len(c.subjects))
	for _, s := range c.subjects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subject returns a subject by ID.
func (c *Catalog) Subject(id string) (Subject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.subjects[id]
	return s, ok
}

// QuestionsBySubject returns the subject's questions in catalog order.
func (c *Catalog) QuestionsBySubject(subjectID string) []Question {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Question
	for _, id := range c.questionOrder {
		if q := c.questions[id]; q.SubjectID == subjectID {
			out = append(out, q)
		}
	}
	return out
}

// Question returns a question by ID.
func (c *Catalog) Question(id string) (Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.questions[id]
	return q, ok
}

// MaterialsBySubject returns the subject's materials sorted by Order.
func (c *Catalog) MaterialsBySubject(subjectID string) []Material {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Material
	for _, id := range c.materialOrder {
		if m := c.materials[id]; m.SubjectID == subjectID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// MaterialByID returns a material by ID.
func (c *Catalog) MaterialByID(id string) (Material, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.materials[id]
	return m, ok
}

// AllMaterials returns every material in catalog order.
func (c *Catalog) AllMaterials() []Material {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Material, 0, len(c.materialOrder))
	for _, id := range c.materialOrder {
		out = append(out, c.materials[id])
	}
	return out
}

// MiniGames returns every mini-game definition in catalog order.
func (c *Catalog) MiniGames() []MiniGame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]MiniGame, 0, len(c.miniGameOrder))
	for _, id := range c.miniGameOrder {
		out = append(out, c.miniGames[id])
	}
	return out
}

// MiniGame returns a mini-game definition by ID.
func (c *Catalog) MiniGame(id string) (MiniGame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.miniGames[id]
	return g, ok
}

// UnlockedAccessories returns the accessories available at the given level.
func (c *Catalog) UnlockedAccessories(level int) []Accessory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Accessory
	for _, id := range c.accessoryOrder {
		if a := c.accessories[id]; a.UnlockLevel <= level {
			out = append(out, a)
		}
	}
	return out
}
