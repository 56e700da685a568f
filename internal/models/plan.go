package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// DefaultDaysPerMicrocycle is the number of days a microcycle owns unless configured otherwise.
const DefaultDaysPerMicrocycle = 7

// Student is the external student record a macrocycle belongs to.
type Student struct {
	ID      uuid.UUID `json:"id"`
	CoachID uuid.UUID `json:"coach_id"`
	Name    string    `json:"name"`
}

// CatalogExercise is an exercise catalog entry, resolved by the authoring
// flow before expansion. It is a reference, never a materialized exercise.
type CatalogExercise struct {
	ID          uuid.UUID `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	MuscleGroup string    `json:"muscle_group" yaml:"muscle_group"`
}

// Macrocycle is a student's multi-month training program.
type Macrocycle struct {
	ID         uuid.UUID   `json:"id"`
	StudentID  uuid.UUID   `json:"student_id"`
	Name       string      `json:"name"`
	Objective  string      `json:"objective"`
	StartDate  time.Time   `json:"start_date"`
	EndDate    time.Time   `json:"end_date"`
	CreatedAt  time.Time   `json:"created_at"`
	Mesocycles []Mesocycle `json:"mesocycles"`
}

// Mesocycle is a phase of a macrocycle, or an unassigned template when
// MacrocycleID is nil.
type Mesocycle struct {
	ID           uuid.UUID    `json:"id"`
	MacrocycleID *uuid.UUID   `json:"macrocycle_id,omitempty"`
	CoachID      uuid.UUID    `json:"coach_id"`
	Name         string       `json:"name"`
	Objective    string       `json:"objective"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	Status       Status       `json:"status"`
	Version      int          `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ArchivedAt   *time.Time   `json:"archived_at,omitempty"`
	Microcycles  []Microcycle `json:"microcycles"`
}

// IsTemplate reports whether the mesocycle is not attached to any student's macrocycle.
func (m *Mesocycle) IsTemplate() bool { return m.MacrocycleID == nil }

// Microcycle is one repetition unit (typically a week). Deload is a volume
// hint only; the structure is identical to any other microcycle.
type Microcycle struct {
	ID        uuid.UUID `json:"id"`
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	IsDeload  bool      `json:"is_deload"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      []Day     `json:"days"`
}

// Day is a single day slot. Rest days own no exercises.
type Day struct {
	ID        uuid.UUID  `json:"id"`
	DayNumber int        `json:"day_number"`
	Name      string     `json:"name"`
	IsRestDay bool       `json:"is_rest_day"`
	Date      time.Time  `json:"date"`
	Exercises []Exercise `json:"exercises"`
}

// Exercise is a materialized exercise instance on a day.
type Exercise struct {
	ID          uuid.UUID  `json:"id"`
	CatalogID   *uuid.UUID `json:"catalog_id,omitempty"`
	Name        string     `json:"name"`
	MuscleGroup string     `json:"muscle_group"`
	OrderIndex  int        `json:"order_index"`
	Sets        []Set      `json:"sets"`
}

// Set is one prescribed set. Load is the suggested load in kg.
type Set struct {
	ID               uuid.UUID `json:"id"`
	Order            int       `json:"order"`
	Reps             Reps      `json:"reps"`
	ExpectedRIR      *int      `json:"expected_rir"`
	RestSeconds      int       `json:"rest_seconds"`
	Load             float64   `json:"load"`
	IsAmrap          bool      `json:"is_amrap"`
	AmrapInstruction *string   `json:"amrap_instruction"`
	AmrapNotes       *string   `json:"amrap_notes"`
}

// MarkAmrap turns the set into an AMRAP set. The instruction is required.
func (s *Set) MarkAmrap(instruction string, notes *string) error {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return planerr.Validation("amrap_instruction", "required when is_amrap is true")
	}
	s.IsAmrap = true
	s.AmrapInstruction = &instruction
	s.AmrapNotes = cloneString(notes)
	return nil
}

// ClearAmrap reverts the set to a fixed rep target.
func (s *Set) ClearAmrap() {
	s.IsAmrap = false
	s.AmrapInstruction = nil
	s.AmrapNotes = nil
}

// FindSet returns the set with the given ID, or nil.
func (m *Mesocycle) FindSet(id uuid.UUID) *Set {
	for i := range m.Microcycles {
		for j := range m.Microcycles[i].Days {
			day := &m.Microcycles[i].Days[j]
			for k := range day.Exercises {
				for l := range day.Exercises[k].Sets {
					if day.Exercises[k].Sets[l].ID == id {
						return &day.Exercises[k].Sets[l]
					}
				}
			}
		}
	}
	return nil
}

// SetCount returns the number of sets across the whole expanded structure.
func (m *Mesocycle) SetCount() int {
	n := 0
	for _, mc := range m.Microcycles {
		for _, d := range mc.Days {
			for _, ex := range d.Exercises {
				n += len(ex.Sets)
			}
		}
	}
	return n
}

// HasTrainableSet reports whether any non-rest day has an exercise with at
// least one set. A mesocycle without one cannot be published.
func (m *Mesocycle) HasTrainableSet() bool {
	for _, mc := range m.Microcycles {
		for _, d := range mc.Days {
			if d.IsRestDay {
				continue
			}
			for _, ex := range d.Exercises {
				if len(ex.Sets) > 0 {
					return true
				}
			}
		}
	}
	return false
}

// ReassignIDs gives every entity in the tree a fresh ID.
func (m *Mesocycle) ReassignIDs(newID func() uuid.UUID) {
	m.ID = newID()
	for i := range m.Microcycles {
		mc := &m.Microcycles[i]
		mc.ID = newID()
		for j := range mc.Days {
			d := &mc.Days[j]
			d.ID = newID()
			for k := range d.Exercises {
				ex := &d.Exercises[k]
				ex.ID = newID()
				for l := range ex.Sets {
					ex.Sets[l].ID = newID()
				}
			}
		}
	}
}

// ResetLoads sets every suggested load in the tree to zero.
func (m *Mesocycle) ResetLoads() {
	for i := range m.Microcycles {
		for j := range m.Microcycles[i].Days {
			day := &m.Microcycles[i].Days[j]
			for k := range day.Exercises {
				for l := range day.Exercises[k].Sets {
					day.Exercises[k].Sets[l].Load = 0
				}
			}
		}
	}
}
