package models

import (
	"time"

	"github.com/google/uuid"
)

// Clone functions copy every field, including pointer targets, so a clone
// never shares mutable state with its source. A new field must be added
// here as well.

// CloneMacrocycle returns a deep copy of m.
func CloneMacrocycle(m Macrocycle) Macrocycle {
	out := Macrocycle{
		ID:        m.ID,
		StudentID: m.StudentID,
		Name:      m.Name,
		Objective: m.Objective,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		CreatedAt: m.CreatedAt,
	}
	if m.Mesocycles != nil {
		out.Mesocycles = make([]Mesocycle, len(m.Mesocycles))
		for i := range m.Mesocycles {
			out.Mesocycles[i] = CloneMesocycle(m.Mesocycles[i])
		}
	}
	return out
}

// CloneMesocycle returns a deep copy of m.
func CloneMesocycle(m Mesocycle) Mesocycle {
	out := Mesocycle{
		ID:           m.ID,
		MacrocycleID: cloneUUID(m.MacrocycleID),
		CoachID:      m.CoachID,
		Name:         m.Name,
		Objective:    m.Objective,
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		Status:       m.Status,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		ArchivedAt:   cloneTime(m.ArchivedAt),
	}
	if m.Microcycles != nil {
		out.Microcycles = make([]Microcycle, len(m.Microcycles))
		for i := range m.Microcycles {
			out.Microcycles[i] = CloneMicrocycle(m.Microcycles[i])
		}
	}
	return out
}

// CloneMicrocycle returns a deep copy of m.
func CloneMicrocycle(m Microcycle) Microcycle {
	out := Microcycle{
		ID:        m.ID,
		Index:     m.Index,
		Name:      m.Name,
		IsDeload:  m.IsDeload,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
	}
	if m.Days != nil {
		out.Days = make([]Day, len(m.Days))
		for i := range m.Days {
			out.Days[i] = CloneDay(m.Days[i])
		}
	}
	return out
}

// CloneDay returns a deep copy of d.
func CloneDay(d Day) Day {
	out := Day{
		ID:        d.ID,
		DayNumber: d.DayNumber,
		Name:      d.Name,
		IsRestDay: d.IsRestDay,
		Date:      d.Date,
	}
	if d.Exercises != nil {
		out.Exercises = make([]Exercise, len(d.Exercises))
		for i := range d.Exercises {
			out.Exercises[i] = CloneExercise(d.Exercises[i])
		}
	}
	return out
}

// CloneExercise returns a deep copy of e.
func CloneExercise(e Exercise) Exercise {
	out := Exercise{
		ID:          e.ID,
		CatalogID:   cloneUUID(e.CatalogID),
		Name:        e.Name,
		MuscleGroup: e.MuscleGroup,
		OrderIndex:  e.OrderIndex,
	}
	if e.Sets != nil {
		out.Sets = make([]Set, len(e.Sets))
		for i := range e.Sets {
			out.Sets[i] = CloneSet(e.Sets[i])
		}
	}
	return out
}

// CloneSet returns a deep copy of s.
func CloneSet(s Set) Set {
	return Set{
		ID:               s.ID,
		Order:            s.Order,
		Reps:             s.Reps,
		ExpectedRIR:      cloneInt(s.ExpectedRIR),
		RestSeconds:      s.RestSeconds,
		Load:             s.Load,
		IsAmrap:          s.IsAmrap,
		AmrapInstruction: cloneString(s.AmrapInstruction),
		AmrapNotes:       cloneString(s.AmrapNotes),
	}
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUUID(p *uuid.UUID) *uuid.UUID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
