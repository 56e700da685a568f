// Package lifecycle implements the mesocycle status state machine: the
// transition table, its guards and side effects, and role-based visibility.
package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// Request asks for a status change. Confirm must be set for transitions the
// assigned student will notice (pausing a published or active plan).
type Request struct {
	Target  models.Status `json:"target_status"`
	Confirm bool          `json:"confirm"`
}

// Allowed returns the statuses reachable from from in one transition.
func Allowed(from models.Status) []models.Status {
	switch from {
	case models.StatusDraft:
		return []models.Status{models.StatusPublished}
	case models.StatusPublished:
		return []models.Status{models.StatusActive, models.StatusPaused}
	case models.StatusActive:
		return []models.Status{models.StatusPaused, models.StatusCompleted}
	case models.StatusPaused:
		return []models.Status{models.StatusActive}
	case models.StatusCompleted:
		return []models.Status{models.StatusArchived}
	case models.StatusArchived:
		return nil
	}
	return nil
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to models.Status) bool {
	for _, s := range Allowed(from) {
		if s == to {
			return true
		}
	}
	return false
}

// Table returns the full transition table keyed by status name.
func Table() map[string][]string {
	out := make(map[string][]string, len(models.AllStatuses))
	for _, from := range models.AllStatuses {
		targets := []string{}
		for _, to := range Allowed(from) {
			targets = append(targets, to.String())
		}
		out[from.String()] = targets
	}
	return out
}

// requiresConfirm reports whether moving from -> to hides the plan from the
// assigned student.
func requiresConfirm(from, to models.Status) bool {
	if to != models.StatusPaused {
		return false
	}
	switch from {
	case models.StatusActive, models.StatusPublished:
		return true
	}
	return false
}

// Apply evaluates req against m and returns the updated copy. m is never
// modified; on error nothing has changed.
func Apply(m *models.Mesocycle, req Request, now time.Time) (*models.Mesocycle, error) {
	from, to := m.Status, req.Target
	if !to.Valid() {
		return nil, planerr.Validation("target_status", "invalid status %d", uint8(to))
	}
	if !CanTransition(from, to) {
		return nil, planerr.InvalidTransition(from.String(), to.String(), "")
	}
	if from == models.StatusDraft && to == models.StatusPublished && !m.HasTrainableSet() {
		return nil, planerr.InvalidTransition(from.String(), to.String(),
			"mesocycle has no training day with an exercise that has a set")
	}
	if requiresConfirm(from, to) && !req.Confirm {
		return nil, planerr.Validation("confirm", "pausing a %s mesocycle hides it from the student and must be confirmed", from)
	}
	return transitioned(m, to, now), nil
}

// Archive is the delete operation: a forced transition to archived from any
// other status. Mesocycles are never physically removed.
func Archive(m *models.Mesocycle, now time.Time) (*models.Mesocycle, error) {
	if m.Status == models.StatusArchived {
		return nil, planerr.InvalidTransition(m.Status.String(), models.StatusArchived.String(), "mesocycle is already archived")
	}
	return transitioned(m, models.StatusArchived, now), nil
}

// AmrapEdit marks (IsAmrap) or clears AMRAP on the set SetID.
type AmrapEdit struct {
	SetID       uuid.UUID `json:"-"`
	IsAmrap     bool      `json:"is_amrap"`
	Instruction string    `json:"amrap_instruction"`
	Notes       *string   `json:"amrap_notes"`
}

// EditAmrap applies edit to a copy of m. Archived mesocycles are read-only.
func EditAmrap(m *models.Mesocycle, edit AmrapEdit, now time.Time) (*models.Mesocycle, error) {
	if m.Status == models.StatusArchived {
		return nil, planerr.Forbidden("mesocycle %s is archived and read-only", m.ID)
	}
	out := models.CloneMesocycle(*m)
	set := out.FindSet(edit.SetID)
	if set == nil {
		return nil, planerr.NotFound("set", edit.SetID)
	}
	if edit.IsAmrap {
		if err := set.MarkAmrap(edit.Instruction, edit.Notes); err != nil {
			return nil, err
		}
	} else {
		set.ClearAmrap()
	}
	out.Version++
	out.UpdatedAt = now.UTC()
	return &out, nil
}

func transitioned(m *models.Mesocycle, to models.Status, now time.Time) *models.Mesocycle {
	out := models.CloneMesocycle(*m)
	now = now.UTC()
	out.Status = to
	out.Version++
	out.UpdatedAt = now
	if to == models.StatusArchived {
		out.ArchivedAt = &now
	}
	return &out
}

// VisibleToCoach reports whether a mesocycle in status s appears in the
// coach's plan listing. Archived plans are listed only on request.
func VisibleToCoach(s models.Status, includeArchived bool) bool {
	switch s {
	case models.StatusDraft, models.StatusPublished, models.StatusActive,
		models.StatusPaused, models.StatusCompleted:
		return true
	case models.StatusArchived:
		return includeArchived
	}
	return false
}

// CoachStatuses lists the statuses shown in the coach's plan listing.
func CoachStatuses(includeArchived bool) []models.Status {
	var out []models.Status
	for _, s := range models.AllStatuses {
		if VisibleToCoach(s, includeArchived) {
			out = append(out, s)
		}
	}
	return out
}

// StudentStatuses lists the statuses shown in a student's plan listing.
func StudentStatuses() []models.Status {
	var out []models.Status
	for _, s := range models.AllStatuses {
		if VisibleToStudent(s) {
			out = append(out, s)
		}
	}
	return out
}

// VisibleToStudent reports whether the assigned student sees a mesocycle in
// status s.
func VisibleToStudent(s models.Status) bool {
	switch s {
	case models.StatusPublished, models.StatusActive, models.StatusCompleted:
		return true
	case models.StatusDraft, models.StatusPaused, models.StatusArchived:
		return false
	}
	return false
}
