// Package assign instantiates an expanded mesocycle onto a student's
// timeline, either in a new macrocycle or appended to an existing one.
package assign

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// Mode selects where the cloned mesocycle is placed.
type Mode uint8

const (
	ModeNewMacrocycle Mode = iota + 1
	ModeExistingMacrocycle
)

func (m Mode) String() string {
	switch m {
	case ModeNewMacrocycle:
		return "new_macrocycle"
	case ModeExistingMacrocycle:
		return "existing_macrocycle"
	}
	return "unknown"
}

// ParseMode converts a mode name into a Mode.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new_macrocycle", "new":
		return ModeNewMacrocycle, nil
	case "existing_macrocycle", "existing":
		return ModeExistingMacrocycle, nil
	}
	return 0, planerr.Validation("mode", "unknown mode %q, want new_macrocycle or existing_macrocycle", raw)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Store is the persistence the assignment service needs. SaveAssignment must
// write the macrocycle (inserted when created, otherwise its end date
// updated) and the whole mesocycle tree atomically.
type Store interface {
	GetMesocycle(ctx context.Context, id uuid.UUID) (*models.Mesocycle, error)
	GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error)
	GetMacrocycle(ctx context.Context, id uuid.UUID) (*models.Macrocycle, error)
	SaveAssignment(ctx context.Context, macro *models.Macrocycle, created bool, meso *models.Mesocycle) error
}

// Request assigns TemplateID to StudentID starting on StartDate.
type Request struct {
	TemplateID         uuid.UUID
	StudentID          uuid.UUID
	Mode               Mode
	MacrocycleID       *uuid.UUID
	StartDate          *time.Time
	KeepSuggestedLoads bool
}

// Result identifies what the assignment created.
type Result struct {
	MacrocycleID      uuid.UUID `json:"macrocycle_id"`
	MesocycleID       uuid.UUID `json:"mesocycle_id"`
	CreatedMacrocycle bool      `json:"created_macrocycle"`
	Warnings          []string  `json:"warnings,omitempty"`
}

// Service performs assignments.
type Service struct {
	store  Store
	logger *slog.Logger
	newID  func() uuid.UUID
	now    func() time.Time
}

// NewService creates a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, newID: uuid.New, now: time.Now}
}

// Assign clones the template onto the student's timeline. Nothing is
// written unless every check passes.
func (s *Service) Assign(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	tmpl, err := s.store.GetMesocycle(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	student, err := s.store.GetStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	clone := Clone(tmpl, *req.StartDate, req.KeepSuggestedLoads, s.newID, s.now())

	var macro *models.Macrocycle
	created := req.Mode == ModeNewMacrocycle
	if created {
		macro = &models.Macrocycle{
			ID:        s.newID(),
			StudentID: student.ID,
			Name:      tmpl.Name,
			Objective: tmpl.Objective,
			StartDate: clone.StartDate,
			EndDate:   clone.EndDate,
			CreatedAt: clone.CreatedAt,
		}
	} else {
		macro, err = s.store.GetMacrocycle(ctx, *req.MacrocycleID)
		if err != nil {
			return nil, err
		}
		if macro.StudentID != student.ID {
			return nil, planerr.Forbidden("macrocycle %s does not belong to student %s", macro.ID, student.ID)
		}
		if clone.EndDate.After(macro.EndDate) {
			macro.EndDate = clone.EndDate
		}
	}
	macroID := macro.ID
	clone.MacrocycleID = &macroID

	view := *macro
	view.Mesocycles = append(append([]models.Mesocycle(nil), macro.Mesocycles...), *clone)
	warnings := append(view.NestingWarnings(), clone.ContiguityWarnings()...)
	for _, w := range warnings {
		s.logger.Warn("assignment date warning", "macrocycle", macro.ID, "warning", w)
	}

	if err := clone.Validate(0); err != nil {
		return nil, err
	}
	if err := macro.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveAssignment(ctx, macro, created, clone); err != nil {
		return nil, err
	}

	s.logger.Info("mesocycle assigned",
		"template", tmpl.ID,
		"student", student.ID,
		"macrocycle", macro.ID,
		"mesocycle", clone.ID,
		"mode", req.Mode,
		"keep_loads", req.KeepSuggestedLoads,
	)
	return &Result{
		MacrocycleID:      macro.ID,
		MesocycleID:       clone.ID,
		CreatedMacrocycle: created,
		Warnings:          warnings,
	}, nil
}

func validate(req Request) error {
	if req.StartDate == nil || req.StartDate.IsZero() {
		return planerr.Validation("start_date", "is required")
	}
	switch req.Mode {
	case ModeNewMacrocycle:
	case ModeExistingMacrocycle:
		if req.MacrocycleID == nil || *req.MacrocycleID == uuid.Nil {
			return planerr.Validation("macrocycle_id", "is required for mode existing_macrocycle")
		}
	default:
		return planerr.Validation("mode", "is required")
	}
	if req.TemplateID == uuid.Nil {
		return planerr.Validation("template_id", "is required")
	}
	if req.StudentID == uuid.Nil {
		return planerr.Validation("student_id", "is required")
	}
	return nil
}

// Clone deep-copies src into a fresh draft mesocycle dated from start. Every
// entity gets a new ID. Loads are zeroed unless keepLoads is set.
func Clone(src *models.Mesocycle, start time.Time, keepLoads bool, newID func() uuid.UUID, now time.Time) *models.Mesocycle {
	out := models.CloneMesocycle(*src)
	out.ReassignIDs(newID)
	out.Redate(start)
	if !keepLoads {
		out.ResetLoads()
	}
	now = now.UTC()
	out.MacrocycleID = nil
	out.Status = models.StatusDraft
	out.Version = 1
	out.CreatedAt = now
	out.UpdatedAt = now
	out.ArchivedAt = nil
	return &out
}
