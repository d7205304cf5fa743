// Package progress tracks which learning materials each user has read and
// completed, and recommends what to read next.
package progress

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/p-n-ai/eduruang/internal/catalog"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Catalog is the subset of the content catalog the tracker reads.
type Catalog interface {
	MaterialsBySubject(subjectID string) []catalog.Material
	MaterialByID(id string) (catalog.Material, bool)
}

// Record is one user's progress on one material.
type Record struct {
	MaterialID        string     `json:"material_id"`
	UserID            string     `json:"user_id"`
	IsCompleted       bool       `json:"is_completed"`
	TimeSpent         int        `json:"time_spent"` // minutes
	LastAccessedAt    time.Time  `json:"last_accessed_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CurrentSection    string     `json:"current_section,omitempty"`
	SectionsCompleted []string   `json:"sections_completed,omitempty"`
	ReadingProgress   int        `json:"reading_progress"` // percent of sections read
	Bookmarked        bool       `json:"bookmarked,omitempty"`
}

func (r *Record) clone() Record {
	c := *r
	c.SectionsCompleted = slices.Clone(r.SectionsCompleted)
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		c.CompletedAt = &at
	}
	return c
}

type key struct {
	materialID string
	userID     string
}

// SubjectProgress summarizes completion across a subject's materials.
type SubjectProgress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Tracker holds at most one Record per (material, user) pair.
type Tracker struct {
	catalog Catalog
	now     func() time.Time
	records map[key]*Record
	order   []key // insertion order, for stable persistence
	mu      sync.RWMutex
}

// NewTracker creates a tracker. now defaults to time.Now.
func NewTracker(c Catalog, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		catalog: c,
		now:     now,
		records: make(map[key]*Record),
	}
}

// StartReading creates the record if missing, otherwise touches LastAccessedAt.
func (t *Tracker) StartReading(materialID, userID string) (Record, error) {
	if _, ok := t.catalog.MaterialByID(materialID); !ok {
		return Record{}, fmt.Errorf("material %s: %w", materialID, ErrNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.upsertLocked(materialID, userID)
	r.LastAccessedAt = t.now()
	return r.clone(), nil
}

// CompleteMaterial marks the material completed, overwriting the time spent
// with the given total minutes.
func (t *Tracker) CompleteMaterial(materialID, userID string, minutes int) (Record, error) {
	if minutes < 0 {
		return Record{}, fmt.Errorf("%w: negative time spent %d", ErrInvalidInput, minutes)
	}
	m, ok := t.catalog.MaterialByID(materialID)
	if !ok {
		return Record{}, fmt.Errorf("material %s: %w", materialID, ErrNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	r := t.upsertLocked(materialID, userID)
	r.IsCompleted = true
	r.TimeSpent = minutes
	r.CompletedAt = &now
	r.LastAccessedAt = now
	r.SectionsCompleted = sectionIDs(m)
	r.ReadingProgress = 100
	return r.clone(), nil
}

// UpdateTimeSpent adds minutes to an existing record. It never creates one.
func (t *Tracker) UpdateTimeSpent(materialID, userID string, minutes int) (Record, error) {
	if minutes < 0 {
		return Record{}, fmt.Errorf("%w: negative time spent %d", ErrInvalidInput, minutes)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[key{materialID, userID}]
	if !ok {
		return Record{}, fmt.Errorf("progress %s/%s: %w", materialID, userID, ErrNotFound)
	}
	r.TimeSpent += minutes
	r.LastAccessedAt = t.now()
	return r.clone(), nil
}

// CompleteSection records a finished section and recomputes ReadingProgress.
// Completing every section does not complete the material.
func (t *Tracker) CompleteSection(materialID, userID, sectionID string) (Record, error) {
	m, ok := t.catalog.MaterialByID(materialID)
	if !ok {
		return Record{}, fmt.Errorf("material %s: %w", materialID, ErrNotFound)
	}
	ids := sectionIDs(m)
	if !slices.Contains(ids, sectionID) {
		return Record{}, fmt.Errorf("section %s of %s: %w", sectionID, materialID, ErrNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.upsertLocked(materialID, userID)
	if !slices.Contains(r.SectionsCompleted, sectionID) {
		r.SectionsCompleted = append(r.SectionsCompleted, sectionID)
	}
	r.CurrentSection = sectionID
	r.LastAccessedAt = t.now()
	r.ReadingProgress = percentage(len(r.SectionsCompleted), len(ids))
	return r.clone(), nil
}

// SetBookmark flags or unflags a material the user has opened.
func (t *Tracker) SetBookmark(materialID, userID string, on bool) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[key{materialID, userID}]
	if !ok {
		return Record{}, fmt.Errorf("progress %s/%s: %w", materialID, userID, ErrNotFound)
	}
	r.Bookmarked = on
	return r.clone(), nil
}

// Progress returns the record for a pair.
func (t *Tracker) Progress(materialID, userID string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.records[key{materialID, userID}]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

// CompletedMaterialIDs returns the set of materials the user completed.
func (t *Tracker) CompletedMaterialIDs(userID string) map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	done := make(map[string]bool)
	for k, r := range t.records {
		if k.userID == userID && r.IsCompleted {
			done[k.materialID] = true
		}
	}
	return done
}

// CompletedMaterials returns the catalog entries the user completed, in
// completion-record order.
func (t *Tracker) CompletedMaterials(userID string) []catalog.Material {
	t.mu.RLock()
	var ids []string
	for _, k := range t.order {
		if k.userID == userID && t.records[k].IsCompleted {
			ids = append(ids, k.materialID)
		}
	}
	t.mu.RUnlock()

	out := make([]catalog.Material, 0, len(ids))
	for _, id := range ids {
		if m, ok := t.catalog.MaterialByID(id); ok {
			out = append(out, m)
		}
	}
	return out
}

// SubjectProgress counts completed materials of a subject. Percentage is
// rounded and is 0 when the subject has no materials.
func (t *Tracker) SubjectProgress(subjectID, userID string) SubjectProgress {
	materials := t.catalog.MaterialsBySubject(subjectID)
	done := t.CompletedMaterialIDs(userID)

	p := SubjectProgress{Total: len(materials)}
	for _, m := range materials {
		if done[m.ID] {
			p.Completed++
		}
	}
	p.Percentage = percentage(p.Completed, p.Total)
	return p
}

// NextRecommendedMaterial returns the lowest-ordered material of the subject
// that is not completed and whose prerequisites are all completed.
func (t *Tracker) NextRecommendedMaterial(subjectID, userID string) (catalog.Material, bool) {
	materials := slices.Clone(t.catalog.MaterialsBySubject(subjectID))
	slices.SortStableFunc(materials, func(a, b catalog.Material) int { return a.Order - b.Order })
	done := t.CompletedMaterialIDs(userID)

	for _, m := range materials {
		if done[m.ID] {
			continue
		}
		if prerequisitesMet(m, done) {
			return m, true
		}
	}
	return catalog.Material{}, false
}

// Records returns every record in insertion order.
func (t *Tracker) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.records[k].clone())
	}
	return out
}

// Restore replaces all records. Later duplicates of a pair win.
func (t *Tracker) Restore(records []Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[key]*Record, len(records))
	t.order = t.order[:0]
	for i := range records {
		r := records[i].clone()
		k := key{r.MaterialID, r.UserID}
		if _, exists := t.records[k]; !exists {
			t.order = append(t.order, k)
		}
		t.records[k] = &r
	}
}

func (t *Tracker) upsertLocked(materialID, userID string) *Record {
	k := key{materialID, userID}
	if r, ok := t.records[k]; ok {
		return r
	}
	r := &Record{MaterialID: materialID, UserID: userID, LastAccessedAt: t.now()}
	t.records[k] = r
	t.order = append(t.order, k)
	return r
}

func prerequisitesMet(m catalog.Material, done map[string]bool) bool {
	for _, id := range m.Prerequisites {
		if !done[id] {
			return false
		}
	}
	return true
}

func sectionIDs(m catalog.Material) []string {
	sections := m.Sections
	if len(sections) == 0 {
		sections = catalog.SectionsFromContent(m)
	}
	ids := make([]string, 0, len(sections))
	for _, s := range sections {
		ids = append(ids, s.ID)
	}
	return ids
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
