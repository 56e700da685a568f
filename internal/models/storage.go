package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// MesocycleFilter selects mesocycles for a listing. Empty Statuses matches
// every status.
type MesocycleFilter struct {
	CoachID   *uuid.UUID
	StudentID *uuid.UUID
	Statuses  []Status
	// TemplatesOnly restricts the listing to mesocycles not assigned to a macrocycle.
	TemplatesOnly bool
}

// Matches reports whether m passes the filter. studentID is the owner of
// m's macrocycle, or uuid.Nil for templates.
func (f MesocycleFilter) Matches(m *Mesocycle, studentID uuid.UUID) bool {
	if f.CoachID != nil && m.CoachID != *f.CoachID {
		return false
	}
	if f.StudentID != nil && (m.MacrocycleID == nil || studentID != *f.StudentID) {
		return false
	}
	if f.TemplatesOnly && !m.IsTemplate() {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == m.Status {
			return true
		}
	}
	return false
}

// MesocycleSummary is a mesocycle without its tree, as returned by listings.
type MesocycleSummary struct {
	ID              uuid.UUID  `json:"id"`
	MacrocycleID    *uuid.UUID `json:"macrocycle_id,omitempty"`
	CoachID         uuid.UUID  `json:"coach_id"`
	Name            string     `json:"name"`
	Objective       string     `json:"objective"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	Status          Status     `json:"status"`
	Version         int        `json:"version"`
	MicrocycleCount int        `json:"microcycle_count"`
	SetCount        int        `json:"set_count"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Summarize returns the listing view of m.
func Summarize(m *Mesocycle) MesocycleSummary {
	return MesocycleSummary{
		ID:              m.ID,
		MacrocycleID:    cloneUUID(m.MacrocycleID),
		CoachID:         m.CoachID,
		Name:            m.Name,
		Objective:       m.Objective,
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		Status:          m.Status,
		Version:         m.Version,
		MicrocycleCount: len(m.Microcycles),
		SetCount:        m.SetCount(),
		UpdatedAt:       m.UpdatedAt,
	}
}

// MicrocycleRow is a row ready for insertion into the microcycles table.
type MicrocycleRow struct {
	ID          uuid.UUID
	MesocycleID uuid.UUID
	Index       int
	Name        string
	IsDeload    bool
	StartDate   *time.Time
	EndDate     *time.Time
}

// DayRow is a row ready for insertion into the days table.
type DayRow struct {
	ID           uuid.UUID
	MicrocycleID uuid.UUID
	DayNumber    int
	Name         string
	IsRestDay    bool
	Date         *time.Time
}

// ExerciseRow is a row ready for insertion into the exercises table.
type ExerciseRow struct {
	ID          uuid.UUID
	DayID       uuid.UUID
	CatalogID   *uuid.UUID
	Name        string
	MuscleGroup string
	OrderIndex  int
}

// SetRow is a row ready for insertion into the sets table.
type SetRow struct {
	ID               uuid.UUID
	ExerciseID       uuid.UUID
	Order            int
	RepsMin          int
	RepsMax          int
	ExpectedRIR      *int
	RestSeconds      int
	Load             float64
	IsAmrap          bool
	AmrapInstruction *string
	AmrapNotes       *string
}

// TreeRows is a mesocycle's tree flattened into table rows.
type TreeRows struct {
	Microcycles []MicrocycleRow
	Days        []DayRow
	Exercises   []ExerciseRow
	Sets        []SetRow
}

// NullableDate returns nil for the zero time.
func NullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefDate(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

// Flatten converts m's tree into rows, parent before child.
func Flatten(m *Mesocycle) TreeRows {
	var rows TreeRows
	for _, mc := range m.Microcycles {
		rows.Microcycles = append(rows.Microcycles, MicrocycleRow{
			ID: mc.ID, MesocycleID: m.ID, Index: mc.Index, Name: mc.Name, IsDeload: mc.IsDeload,
			StartDate: NullableDate(mc.StartDate), EndDate: NullableDate(mc.EndDate),
		})
		for _, d := range mc.Days {
			rows.Days = append(rows.Days, DayRow{
				ID: d.ID, MicrocycleID: mc.ID, DayNumber: d.DayNumber, Name: d.Name,
				IsRestDay: d.IsRestDay, Date: NullableDate(d.Date),
			})
			for _, ex := range d.Exercises {
				rows.Exercises = append(rows.Exercises, ExerciseRow{
					ID: ex.ID, DayID: d.ID, CatalogID: cloneUUID(ex.CatalogID), Name: ex.Name,
					MuscleGroup: ex.MuscleGroup, OrderIndex: ex.OrderIndex,
				})
				for _, s := range ex.Sets {
					rows.Sets = append(rows.Sets, SetRow{
						ID: s.ID, ExerciseID: ex.ID, Order: s.Order, RepsMin: s.Reps.Min, RepsMax: s.Reps.Max,
						ExpectedRIR: cloneInt(s.ExpectedRIR), RestSeconds: s.RestSeconds, Load: s.Load,
						IsAmrap: s.IsAmrap, AmrapInstruction: cloneString(s.AmrapInstruction),
						AmrapNotes: cloneString(s.AmrapNotes),
					})
				}
			}
		}
	}
	return rows
}

// Assemble rebuilds m's tree from rows. Rows may arrive in any order;
// children are sorted by their position within the parent.
func Assemble(m *Mesocycle, rows TreeRows) {
	sets := make(map[uuid.UUID][]Set)
	for _, r := range rows.Sets {
		sets[r.ExerciseID] = append(sets[r.ExerciseID], Set{
			ID: r.ID, Order: r.Order, Reps: Reps{Min: r.RepsMin, Max: r.RepsMax},
			ExpectedRIR: cloneInt(r.ExpectedRIR), RestSeconds: r.RestSeconds, Load: r.Load,
			IsAmrap: r.IsAmrap, AmrapInstruction: cloneString(r.AmrapInstruction), AmrapNotes: cloneString(r.AmrapNotes),
		})
	}
	exercises := make(map[uuid.UUID][]Exercise)
	for _, r := range rows.Exercises {
		s := sets[r.ID]
		sort.Slice(s, func(i, j int) bool { return s[i].Order < s[j].Order })
		if s == nil {
			s = []Set{}
		}
		exercises[r.DayID] = append(exercises[r.DayID], Exercise{
			ID: r.ID, CatalogID: cloneUUID(r.CatalogID), Name: r.Name, MuscleGroup: r.MuscleGroup,
			OrderIndex: r.OrderIndex, Sets: s,
		})
	}
	days := make(map[uuid.UUID][]Day)
	for _, r := range rows.Days {
		ex := exercises[r.ID]
		sort.Slice(ex, func(i, j int) bool { return ex[i].OrderIndex < ex[j].OrderIndex })
		if ex == nil {
			ex = []Exercise{}
		}
		days[r.MicrocycleID] = append(days[r.MicrocycleID], Day{
			ID: r.ID, DayNumber: r.DayNumber, Name: r.Name, IsRestDay: r.IsRestDay,
			Date: derefDate(r.Date), Exercises: ex,
		})
	}
	m.Microcycles = make([]Microcycle, 0, len(rows.Microcycles))
	for _, r := range rows.Microcycles {
		d := days[r.ID]
		sort.Slice(d, func(i, j int) bool { return d[i].DayNumber < d[j].DayNumber })
		m.Microcycles = append(m.Microcycles, Microcycle{
			ID: r.ID, Index: r.Index, Name: r.Name, IsDeload: r.IsDeload,
			StartDate: derefDate(r.StartDate), EndDate: derefDate(r.EndDate), Days: d,
		})
	}
	sort.Slice(m.Microcycles, func(i, j int) bool { return m.Microcycles[i].Index < m.Microcycles[j].Index })
}
