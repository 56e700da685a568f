package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/meltforce/mesoplan/internal/planerr"
)

// Validate checks the hard structural invariants of an expanded mesocycle.
// daysPerMicrocycle <= 0 skips the day-count check.
func (m *Mesocycle) Validate(daysPerMicrocycle int) error {
	if strings.TrimSpace(m.Name) == "" {
		return planerr.Validation("name", "must not be blank")
	}
	if !m.Status.Valid() {
		return planerr.Validation("status", "invalid status %d", uint8(m.Status))
	}
	if !m.StartDate.IsZero() && !m.EndDate.IsZero() && m.EndDate.Before(m.StartDate) {
		return planerr.Validation("end_date", "must not be before start_date")
	}
	for i, mc := range m.Microcycles {
		path := fmt.Sprintf("microcycles[%d]", i)
		if mc.Index != i {
			return planerr.Validation(path+".index", "is %d, want %d", mc.Index, i)
		}
		if daysPerMicrocycle > 0 && len(mc.Days) != daysPerMicrocycle {
			return planerr.Validation(path+".days", "has %d days, want %d", len(mc.Days), daysPerMicrocycle)
		}
		if err := validateDays(path, mc.Days); err != nil {
			return err
		}
	}
	return nil
}

func validateDays(path string, days []Day) error {
	prev := 0
	for j, d := range days {
		dp := fmt.Sprintf("%s.days[%d]", path, j)
		if d.DayNumber <= prev {
			return planerr.Validation(dp+".day_number", "%d is out of order or duplicated", d.DayNumber)
		}
		prev = d.DayNumber
		if d.IsRestDay && len(d.Exercises) > 0 {
			return planerr.Validation(dp+".exercises", "rest day must not have exercises")
		}
		for k, ex := range d.Exercises {
			ep := fmt.Sprintf("%s.exercises[%d]", dp, k)
			if strings.TrimSpace(ex.Name) == "" {
				return planerr.Validation(ep+".name", "must not be blank")
			}
			if ex.OrderIndex != k+1 {
				return planerr.Validation(ep+".order_index", "is %d, want %d", ex.OrderIndex, k+1)
			}
			if err := validateSets(ep, ex.Sets); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateSets(path string, sets []Set) error {
	for l, s := range sets {
		sp := fmt.Sprintf("%s.sets[%d]", path, l)
		if s.Order != l+1 {
			return planerr.Validation(sp+".order", "is %d, want %d (orders must be contiguous from 1)", s.Order, l+1)
		}
		if err := s.Reps.Validate(); err != nil {
			e, _ := planerr.As(err)
			return planerr.Validation(sp+".reps", "%s", e.Msg)
		}
		if s.IsAmrap && (s.AmrapInstruction == nil || strings.TrimSpace(*s.AmrapInstruction) == "") {
			return planerr.Validation(sp+".amrap_instruction", "required when is_amrap is true")
		}
		if s.Load < 0 {
			return planerr.Validation(sp+".load", "must not be negative")
		}
	}
	return nil
}

// Validate checks the macrocycle's own date invariant.
func (m *Macrocycle) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return planerr.Validation("name", "must not be blank")
	}
	if m.EndDate.Before(m.StartDate) {
		return planerr.Validation("end_date", "must not be before start_date")
	}
	return nil
}

// NestingWarnings lists mesocycles whose dates fall outside the macrocycle.
// Nesting is not enforced at write time.
func (m *Macrocycle) NestingWarnings() []string {
	var warnings []string
	for _, meso := range m.Mesocycles {
		if meso.StartDate.IsZero() {
			continue
		}
		if meso.StartDate.Before(m.StartDate) || meso.EndDate.After(m.EndDate) {
			warnings = append(warnings, fmt.Sprintf("mesocycle %s (%s..%s) is outside macrocycle range %s..%s",
				meso.ID, formatDate(meso.StartDate), formatDate(meso.EndDate),
				formatDate(m.StartDate), formatDate(m.EndDate)))
		}
	}
	return warnings
}

// ContiguityWarnings lists microcycles that overlap or leave a gap after
// their predecessor. Contiguity is not enforced at write time.
func (m *Mesocycle) ContiguityWarnings() []string {
	var warnings []string
	for i := 1; i < len(m.Microcycles); i++ {
		prev, cur := m.Microcycles[i-1], m.Microcycles[i]
		if prev.EndDate.IsZero() || cur.StartDate.IsZero() {
			continue
		}
		want := prev.EndDate.AddDate(0, 0, 1)
		if !cur.StartDate.Equal(want) {
			warnings = append(warnings, fmt.Sprintf("microcycle %d starts %s, expected %s",
				cur.Index+1, formatDate(cur.StartDate), formatDate(want)))
		}
	}
	return warnings
}

// Redate moves the whole tree so that it starts on start. Dated trees are
// shifted by whole days, preserving every day and week offset; undated trees
// are laid out back to back by index.
func (m *Mesocycle) Redate(start time.Time) {
	start = DateOf(start)
	if m.StartDate.IsZero() {
		m.layout(start)
		return
	}
	days := int(start.Sub(DateOf(m.StartDate)).Hours() / 24)
	shift := func(t time.Time) time.Time {
		if t.IsZero() {
			return t
		}
		return t.AddDate(0, 0, days)
	}
	m.StartDate = shift(m.StartDate)
	m.EndDate = shift(m.EndDate)
	for i := range m.Microcycles {
		mc := &m.Microcycles[i]
		mc.StartDate = shift(mc.StartDate)
		mc.EndDate = shift(mc.EndDate)
		for j := range mc.Days {
			mc.Days[j].Date = shift(mc.Days[j].Date)
		}
	}
}

// layout assigns dates by position: microcycles back to back, day N on
// microcycle start + N-1.
func (m *Mesocycle) layout(start time.Time) {
	m.StartDate = start
	m.EndDate = start
	cursor := start
	for i := range m.Microcycles {
		mc := &m.Microcycles[i]
		span := len(mc.Days)
		for _, d := range mc.Days {
			if d.DayNumber > span {
				span = d.DayNumber
			}
		}
		if span == 0 {
			span = 1
		}
		mc.StartDate = cursor
		mc.EndDate = cursor.AddDate(0, 0, span-1)
		for j := range mc.Days {
			mc.Days[j].Date = cursor.AddDate(0, 0, mc.Days[j].DayNumber-1)
		}
		m.EndDate = mc.EndDate
		cursor = mc.EndDate.AddDate(0, 0, 1)
	}
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
