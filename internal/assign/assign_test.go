package assign

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

type fakeStore struct {
	mesos    map[uuid.UUID]*models.Mesocycle
	students map[uuid.UUID]*models.Student
	macros   map[uuid.UUID]*models.Macrocycle

	saved        *models.Mesocycle
	savedMacro   *models.Macrocycle
	savedCreated bool
}

func (f *fakeStore) GetMesocycle(_ context.Context, id uuid.UUID) (*models.Mesocycle, error) {
	m, ok := f.mesos[id]
	if !ok {
		return nil, planerr.NotFound("mesocycle", id)
	}
	out := models.CloneMesocycle(*m)
	return &out, nil
}

func (f *fakeStore) GetStudent(_ context.Context, id uuid.UUID) (*models.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, planerr.NotFound("student", id)
	}
	return s, nil
}

func (f *fakeStore) GetMacrocycle(_ context.Context, id uuid.UUID) (*models.Macrocycle, error) {
	m, ok := f.macros[id]
	if !ok {
		return nil, planerr.NotFound("macrocycle", id)
	}
	out := models.CloneMacrocycle(*m)
	return &out, nil
}

func (f *fakeStore) SaveAssignment(_ context.Context, macro *models.Macrocycle, created bool, meso *models.Mesocycle) error {
	f.savedMacro, f.savedCreated, f.saved = macro, created, meso
	return nil
}

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

type fixture struct {
	store    *fakeStore
	svc      *Service
	template *models.Mesocycle
	student  *models.Student
	macro    *models.Macrocycle
}

// newFixture builds a published, dated two-week template with one set at
// load 20 on day 1 of each week, a student, and a macrocycle owned by them.
func newFixture() *fixture {
	rir := 2
	week := func(i int) models.Microcycle {
		start := date(2026, 1, 5).AddDate(0, 0, 7*i)
		days := []models.Day{{
			ID: uuid.New(), DayNumber: 1, Name: "Lower", Date: start,
			Exercises: []models.Exercise{{
				ID: uuid.New(), Name: "Squat", MuscleGroup: "Legs", OrderIndex: 1,
				Sets: []models.Set{{ID: uuid.New(), Order: 1, Reps: models.FixedReps(5), ExpectedRIR: &rir, Load: 20}},
			}},
		}}
		for n := 2; n <= 7; n++ {
			days = append(days, models.Day{ID: uuid.New(), DayNumber: n, Name: "Rest", IsRestDay: true, Date: start.AddDate(0, 0, n-1)})
		}
		return models.Microcycle{ID: uuid.New(), Index: i, Name: "Microcycle", StartDate: start, EndDate: start.AddDate(0, 0, 6), Days: days}
	}
	tmpl := &models.Mesocycle{
		ID: uuid.New(), Name: "Strength", Objective: "Get strong",
		StartDate: date(2026, 1, 5), EndDate: date(2026, 1, 18),
		Status: models.StatusPublished, Version: 4,
		Microcycles: []models.Microcycle{week(0), week(1)},
	}
	student := &models.Student{ID: uuid.New(), Name: "Ana"}
	macro := &models.Macrocycle{
		ID: uuid.New(), StudentID: student.ID, Name: "2026 season",
		StartDate: date(2026, 3, 1), EndDate: date(2026, 3, 31),
	}
	store := &fakeStore{
		mesos:    map[uuid.UUID]*models.Mesocycle{tmpl.ID: tmpl},
		students: map[uuid.UUID]*models.Student{student.ID: student},
		macros:   map[uuid.UUID]*models.Macrocycle{macro.ID: macro},
	}
	return &fixture{
		store:    store,
		svc:      NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil))),
		template: tmpl,
		student:  student,
		macro:    macro,
	}
}

// TestAssignLoadPolicy verifies suggested loads are zeroed unless kept.
func TestAssignLoadPolicy(t *testing.T) {
	tests := []struct {
		keep bool
		want float64
	}{
		{false, 0},
		{true, 20},
	}
	for _, tt := range tests {
		f := newFixture()
		_, err := f.svc.Assign(context.Background(), Request{
			TemplateID: f.template.ID, StudentID: f.student.ID, Mode: ModeNewMacrocycle,
			StartDate: datePtr(2026, 3, 2), KeepSuggestedLoads: tt.keep,
		})
		if err != nil {
			t.Fatalf("keep=%v: Assign: %v", tt.keep, err)
		}
		for _, mc := range f.store.saved.Microcycles {
			if got := mc.Days[0].Exercises[0].Sets[0].Load; got != tt.want {
				t.Errorf("keep=%v: load = %v, want %v", tt.keep, got, tt.want)
			}
		}
		if got := f.template.Microcycles[0].Days[0].Exercises[0].Sets[0].Load; got != 20 {
			t.Errorf("template load changed to %v", got)
		}
	}
}

// TestAssignNewMacrocycle verifies the clone is a dated draft wrapped in a new macrocycle.
func TestAssignNewMacrocycle(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Assign(context.Background(), Request{
		TemplateID: f.template.ID, StudentID: f.student.ID, Mode: ModeNewMacrocycle,
		StartDate: datePtr(2026, 3, 2),
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !res.CreatedMacrocycle || !f.store.savedCreated {
		t.Error("expected a created macrocycle")
	}
	meso, macro := f.store.saved, f.store.savedMacro
	if res.MesocycleID != meso.ID || res.MacrocycleID != macro.ID {
		t.Errorf("result ids do not match saved entities")
	}
	if meso.ID == f.template.ID || meso.Microcycles[0].Days[0].Exercises[0].Sets[0].ID == f.template.Microcycles[0].Days[0].Exercises[0].Sets[0].ID {
		t.Error("clone reuses template ids")
	}
	if meso.Status != models.StatusDraft || meso.Version != 1 {
		t.Errorf("clone status = %s v%d, want draft v1", meso.Status, meso.Version)
	}
	if meso.MacrocycleID == nil || *meso.MacrocycleID != macro.ID {
		t.Errorf("clone macrocycle = %v, want %s", meso.MacrocycleID, macro.ID)
	}
	if macro.Name != "Strength" || macro.StudentID != f.student.ID {
		t.Errorf("macrocycle = %+v", macro)
	}
	if !meso.StartDate.Equal(date(2026, 3, 2)) || !meso.EndDate.Equal(date(2026, 3, 15)) {
		t.Errorf("clone dates = %s..%s", meso.StartDate, meso.EndDate)
	}
	if got := meso.Microcycles[1].Days[3].Date; !got.Equal(date(2026, 3, 12)) {
		t.Errorf("week 2 day 4 = %s, want 2026-03-12", got)
	}
	if !macro.StartDate.Equal(meso.StartDate) || !macro.EndDate.Equal(meso.EndDate) {
		t.Errorf("macrocycle range = %s..%s", macro.StartDate, macro.EndDate)
	}
}

// TestAssignExistingMacrocycle verifies appending extends the macrocycle when
// the clone runs past its end.
func TestAssignExistingMacrocycle(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Assign(context.Background(), Request{
		TemplateID: f.template.ID, StudentID: f.student.ID, Mode: ModeExistingMacrocycle,
		MacrocycleID: &f.macro.ID, StartDate: datePtr(2026, 3, 23),
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.CreatedMacrocycle || f.store.savedCreated {
		t.Error("expected existing macrocycle to be reused")
	}
	if res.MacrocycleID != f.macro.ID {
		t.Errorf("macrocycle = %s, want %s", res.MacrocycleID, f.macro.ID)
	}
	if got := f.store.savedMacro.EndDate; !got.Equal(date(2026, 4, 5)) {
		t.Errorf("macrocycle end = %s, want 2026-04-05", got)
	}
}

// TestAssignFailures covers the NotFound, Forbidden and validation failures.
func TestAssignFailures(t *testing.T) {
	f := newFixture()
	other := &models.Macrocycle{ID: uuid.New(), StudentID: uuid.New(), Name: "Other", StartDate: date(2026, 1, 1), EndDate: date(2026, 12, 31)}
	f.store.macros[other.ID] = other
	missing := uuid.New()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown template", Request{TemplateID: missing, StudentID: f.student.ID, Mode: ModeNewMacrocycle, StartDate: datePtr(2026, 3, 2)}, planerr.ErrNotFound},
		{"unknown student", Request{TemplateID: f.template.ID, StudentID: missing, Mode: ModeNewMacrocycle, StartDate: datePtr(2026, 3, 2)}, planerr.ErrNotFound},
		{"unknown macrocycle", Request{TemplateID: f.template.ID, StudentID: f.student.ID, Mode: ModeExistingMacrocycle, MacrocycleID: &missing, StartDate: datePtr(2026, 3, 2)}, planerr.ErrNotFound},
		{"other student's macrocycle", Request{TemplateID: f.template.ID, StudentID: f.student.ID, Mode: ModeExistingMacrocycle, MacrocycleID: &other.ID, StartDate: datePtr(2026, 3, 2)}, planerr.ErrForbidden},
		{"missing start date", Request{TemplateID: f.template.ID, StudentID: f.student.ID, Mode: ModeNewMacrocycle}, planerr.ErrValidation},
		{"existing without macrocycle", Request{TemplateID: f.template.ID, StudentID: f.student.ID, Mode: ModeExistingMacrocycle, StartDate: datePtr(2026, 3, 2)}, planerr.ErrValidation},
		{"missing mode", Request{TemplateID: f.template.ID, StudentID: f.student.ID, StartDate: datePtr(2026, 3, 2)}, planerr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.store.saved = nil
			_, err := f.svc.Assign(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if f.store.saved != nil {
				t.Error("assignment was persisted despite the error")
			}
		})
	}
}

// TestAssignRejectsBrokenTemplate verifies a stored template whose tree breaks
// set ordering fails validation before anything is written.
func TestAssignRejectsBrokenTemplate(t *testing.T) {
	f := newFixture()
	f.template.Microcycles[1].Days[0].Exercises[0].Sets[0].Order = 3

	_, err := f.svc.Assign(context.Background(), Request{
		TemplateID: f.template.ID, StudentID: f.student.ID,
		Mode: ModeNewMacrocycle, StartDate: datePtr(2026, 3, 2),
	})
	if !errors.Is(err, planerr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if f.store.saved != nil || f.store.savedMacro != nil {
		t.Error("assignment was persisted despite the error")
	}
}

// TestCloneUndatedTemplate verifies an undated source is laid out from start.
func TestCloneUndatedTemplate(t *testing.T) {
	f := newFixture()
	src := models.CloneMesocycle(*f.template)
	src.StartDate, src.EndDate = time.Time{}, time.Time{}
	for i := range src.Microcycles {
		src.Microcycles[i].StartDate, src.Microcycles[i].EndDate = time.Time{}, time.Time{}
		for j := range src.Microcycles[i].Days {
			src.Microcycles[i].Days[j].Date = time.Time{}
		}
	}
	out := Clone(&src, date(2026, 5, 4), true, uuid.New, date(2026, 5, 1))
	if !out.EndDate.Equal(date(2026, 5, 17)) {
		t.Errorf("end = %s, want 2026-05-17", out.EndDate)
	}
	if len(out.ContiguityWarnings()) != 0 {
		t.Errorf("warnings = %v", out.ContiguityWarnings())
	}
}

// TestParseMode verifies mode names.
func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{
		"new_macrocycle":      ModeNewMacrocycle,
		"EXISTING_MACROCYCLE": ModeExistingMacrocycle,
		" existing ":          ModeExistingMacrocycle,
	} {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseMode("merge"); !errors.Is(err, planerr.ErrValidation) {
		t.Errorf("ParseMode(merge) err = %v", err)
	}
}
