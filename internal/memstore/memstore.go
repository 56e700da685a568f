// Package memstore is an in-memory plan store for development and tests.
// It implements the same contract as the PostgreSQL store, including the
// optimistic version check on status writes. Values are deep-copied on the
// way in and out so callers never share state with the store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// Store holds students, macrocycles and mesocycles behind one lock.
type Store struct {
	mu          sync.RWMutex
	students    map[uuid.UUID]models.Student
	macrocycles map[uuid.UUID]models.Macrocycle // Mesocycles left empty; see mesoOrder
	mesocycles  map[uuid.UUID]models.Mesocycle
	mesoOrder   map[uuid.UUID][]uuid.UUID // macrocycle id -> mesocycle ids in append order
}

// New returns an empty store.
func New() *Store {
	return &Store{
		students:    map[uuid.UUID]models.Student{},
		macrocycles: map[uuid.UUID]models.Macrocycle{},
		mesocycles:  map[uuid.UUID]models.Mesocycle{},
		mesoOrder:   map[uuid.UUID][]uuid.UUID{},
	}
}

// UpsertStudent creates or replaces a student record.
func (s *Store) UpsertStudent(_ context.Context, st *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.ID] = *st
	return nil
}

// GetStudent returns the student with the given id.
func (s *Store) GetStudent(_ context.Context, id uuid.UUID) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, planerr.NotFound("student", id)
	}
	return &st, nil
}

// CreateMesocycle stores a new mesocycle tree.
func (s *Store) CreateMesocycle(_ context.Context, m *models.Mesocycle) error {
	if err := m.Validate(0); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mesocycles[m.ID]; exists {
		return planerr.Conflict("mesocycle %s already exists", m.ID)
	}
	if m.MacrocycleID != nil {
		if _, ok := s.macrocycles[*m.MacrocycleID]; !ok {
			return planerr.NotFound("macrocycle", *m.MacrocycleID)
		}
		s.mesoOrder[*m.MacrocycleID] = append(s.mesoOrder[*m.MacrocycleID], m.ID)
	}
	s.mesocycles[m.ID] = models.CloneMesocycle(*m)
	return nil
}

// GetMesocycle returns a copy of the full mesocycle tree.
func (s *Store) GetMesocycle(_ context.Context, id uuid.UUID) (*models.Mesocycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mesocycles[id]
	if !ok {
		return nil, planerr.NotFound("mesocycle", id)
	}
	out := models.CloneMesocycle(m)
	return &out, nil
}

// ListMesocycles returns summaries matching f, most recently updated first.
func (s *Store) ListMesocycles(_ context.Context, f models.MesocycleFilter) ([]models.MesocycleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.MesocycleSummary{}
	for id := range s.mesocycles {
		m := s.mesocycles[id]
		if !f.Matches(&m, s.ownerOf(&m)) {
			continue
		}
		out = append(out, models.Summarize(&m))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) ownerOf(m *models.Mesocycle) uuid.UUID {
	if m.MacrocycleID == nil {
		return uuid.Nil
	}
	return s.macrocycles[*m.MacrocycleID].StudentID
}

// UpdateMesocycleStatus writes the lifecycle fields of m if the stored
// version equals expectedVersion.
func (s *Store) UpdateMesocycleStatus(_ context.Context, m *models.Mesocycle, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.mesocycles[m.ID]
	if !ok {
		return planerr.NotFound("mesocycle", m.ID)
	}
	if cur.Version != expectedVersion {
		return planerr.Conflict("mesocycle %s is at version %d, expected %d", m.ID, cur.Version, expectedVersion)
	}
	cur.Status = m.Status
	cur.Version = m.Version
	cur.UpdatedAt = m.UpdatedAt
	cur.ArchivedAt = nil
	if m.ArchivedAt != nil {
		t := *m.ArchivedAt
		cur.ArchivedAt = &t
	}
	s.mesocycles[m.ID] = cur
	return nil
}

// UpdateSet replaces one set of mesocycle m and bumps the mesocycle version,
// guarded by expectedVersion like status writes.
func (s *Store) UpdateSet(_ context.Context, m *models.Mesocycle, set *models.Set, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.mesocycles[m.ID]
	if !ok {
		return planerr.NotFound("mesocycle", m.ID)
	}
	if cur.Version != expectedVersion {
		return planerr.Conflict("mesocycle %s is at version %d, expected %d", m.ID, cur.Version, expectedVersion)
	}
	target := cur.FindSet(set.ID)
	if target == nil {
		return planerr.NotFound("set", set.ID)
	}
	*target = models.CloneSet(*set)
	cur.Version = m.Version
	cur.UpdatedAt = m.UpdatedAt
	s.mesocycles[m.ID] = cur
	return nil
}

// GetMacrocycle returns the macrocycle with its mesocycle trees in append order.
func (s *Store) GetMacrocycle(_ context.Context, id uuid.UUID) (*models.Macrocycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	macro, ok := s.macrocycles[id]
	if !ok {
		return nil, planerr.NotFound("macrocycle", id)
	}
	out := models.CloneMacrocycle(macro)
	out.Mesocycles = []models.Mesocycle{}
	for _, mid := range s.mesoOrder[id] {
		out.Mesocycles = append(out.Mesocycles, models.CloneMesocycle(s.mesocycles[mid]))
	}
	return &out, nil
}

// SaveAssignment stores the macrocycle (new, or with its end date extended to
// macro.EndDate when that is later) and the cloned mesocycle in one step.
func (s *Store) SaveAssignment(_ context.Context, macro *models.Macrocycle, created bool, meso *models.Mesocycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[macro.StudentID]; !ok {
		return planerr.NotFound("student", macro.StudentID)
	}
	_, exists := s.macrocycles[macro.ID]
	switch {
	case created && exists:
		return planerr.Conflict("macrocycle %s already exists", macro.ID)
	case !created && !exists:
		return planerr.NotFound("macrocycle", macro.ID)
	}
	if _, dup := s.mesocycles[meso.ID]; dup {
		return planerr.Conflict("mesocycle %s already exists", meso.ID)
	}

	stored := models.CloneMacrocycle(*macro)
	stored.Mesocycles = nil
	if !created {
		prev := s.macrocycles[macro.ID]
		if macro.EndDate.After(prev.EndDate) {
			prev.EndDate = macro.EndDate
		}
		stored = prev
	}
	s.macrocycles[macro.ID] = stored
	s.mesocycles[meso.ID] = models.CloneMesocycle(*meso)
	s.mesoOrder[macro.ID] = append(s.mesoOrder[macro.ID], meso.ID)
	return nil
}
