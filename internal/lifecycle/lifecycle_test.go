package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// trainable returns a one-microcycle mesocycle with a single set.
func trainable(status models.Status) *models.Mesocycle {
	return &models.Mesocycle{
		ID:      uuid.New(),
		Name:    "Hypertrophy",
		Status:  status,
		Version: 1,
		Microcycles: []models.Microcycle{{
			Name: "Microcycle 1",
			Days: []models.Day{
				{DayNumber: 1, Name: "Push", Exercises: []models.Exercise{{
					Name: "Bench Press", OrderIndex: 1,
					Sets: []models.Set{{Order: 1, Reps: models.FixedReps(8), Load: 60}},
				}}},
				{DayNumber: 2, Name: "Rest", IsRestDay: true},
			},
		}},
	}
}

// TestTransitionTable verifies every (from, to) pair against the table.
func TestTransitionTable(t *testing.T) {
	allowed := map[models.Status][]models.Status{
		models.StatusDraft:     {models.StatusPublished},
		models.StatusPublished: {models.StatusActive, models.StatusPaused},
		models.StatusActive:    {models.StatusPaused, models.StatusCompleted},
		models.StatusPaused:    {models.StatusActive},
		models.StatusCompleted: {models.StatusArchived},
		models.StatusArchived:  {},
	}
	for _, from := range models.AllStatuses {
		for _, to := range models.AllStatuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

// TestApplyLegality covers the lifecycle legality properties.
func TestApplyLegality(t *testing.T) {
	empty := trainable(models.StatusDraft)
	empty.Microcycles[0].Days[0].Exercises[0].Sets = nil

	tests := []struct {
		name     string
		meso     *models.Mesocycle
		req      Request
		wantKind planerr.Kind
	}{
		{"draft to active", trainable(models.StatusDraft), Request{Target: models.StatusActive}, planerr.KindInvalidTransition},
		{"draft to published", trainable(models.StatusDraft), Request{Target: models.StatusPublished}, ""},
		{"draft to published without sets", empty, Request{Target: models.StatusPublished}, planerr.KindInvalidTransition},
		{"published to active", trainable(models.StatusPublished), Request{Target: models.StatusActive}, ""},
		{"published to paused unconfirmed", trainable(models.StatusPublished), Request{Target: models.StatusPaused}, planerr.KindValidation},
		{"active to paused confirmed", trainable(models.StatusActive), Request{Target: models.StatusPaused, Confirm: true}, ""},
		{"active to paused unconfirmed", trainable(models.StatusActive), Request{Target: models.StatusPaused}, planerr.KindValidation},
		{"paused to active", trainable(models.StatusPaused), Request{Target: models.StatusActive}, ""},
		{"paused to completed", trainable(models.StatusPaused), Request{Target: models.StatusCompleted}, planerr.KindInvalidTransition},
		{"completed to archived", trainable(models.StatusCompleted), Request{Target: models.StatusArchived}, ""},
		{"active to archived", trainable(models.StatusActive), Request{Target: models.StatusArchived}, planerr.KindInvalidTransition},
		{"invalid target", trainable(models.StatusDraft), Request{}, planerr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.meso, tt.req, testNow)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("Apply: %v", err)
				}
				if got.Status != tt.req.Target {
					t.Errorf("status = %s, want %s", got.Status, tt.req.Target)
				}
				return
			}
			if planerr.KindOf(err) != tt.wantKind {
				t.Fatalf("err = %v, want kind %s", err, tt.wantKind)
			}
			if got != nil {
				t.Error("expected no result on error")
			}
		})
	}
}

// TestArchivedIsTerminal verifies archived -> * is always rejected.
func TestArchivedIsTerminal(t *testing.T) {
	for _, to := range models.AllStatuses {
		_, err := Apply(trainable(models.StatusArchived), Request{Target: to, Confirm: true}, testNow)
		if !errors.Is(err, planerr.ErrInvalidTransition) {
			t.Errorf("archived -> %s: err = %v, want invalid transition", to, err)
		}
	}
	if _, err := Archive(trainable(models.StatusArchived), testNow); !errors.Is(err, planerr.ErrInvalidTransition) {
		t.Errorf("Archive(archived): err = %v, want invalid transition", err)
	}
}

// TestInvalidTransitionNamesStates verifies the error carries both states.
func TestInvalidTransitionNamesStates(t *testing.T) {
	_, err := Apply(trainable(models.StatusDraft), Request{Target: models.StatusActive}, testNow)
	e, ok := planerr.As(err)
	if !ok {
		t.Fatalf("err = %v, want *planerr.Error", err)
	}
	if e.From != "draft" || e.To != "active" {
		t.Errorf("from/to = %s/%s, want draft/active", e.From, e.To)
	}
}

// TestApplyDoesNotMutate verifies Apply returns a new value with side effects
// and leaves the input untouched.
func TestApplyDoesNotMutate(t *testing.T) {
	in := trainable(models.StatusCompleted)
	out, err := Apply(in, Request{Target: models.StatusArchived}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if in.Status != models.StatusCompleted || in.Version != 1 || in.ArchivedAt != nil {
		t.Errorf("input mutated: %+v", in)
	}
	if out.Version != 2 || !out.UpdatedAt.Equal(testNow) {
		t.Errorf("version/updated_at = %d/%s", out.Version, out.UpdatedAt)
	}
	if out.ArchivedAt == nil || !out.ArchivedAt.Equal(testNow) {
		t.Errorf("archived_at = %v, want %s", out.ArchivedAt, testNow)
	}
	out.Microcycles[0].Days[0].Exercises[0].Sets[0].Load = 100
	if in.Microcycles[0].Days[0].Exercises[0].Sets[0].Load != 60 {
		t.Error("result shares sets with input")
	}
}

// TestArchiveFromAnyStatus verifies delete is a forced archive.
func TestArchiveFromAnyStatus(t *testing.T) {
	for _, s := range models.AllStatuses {
		if s == models.StatusArchived {
			continue
		}
		got, err := Archive(trainable(s), testNow)
		if err != nil {
			t.Errorf("Archive(%s): %v", s, err)
			continue
		}
		if got.Status != models.StatusArchived || got.ArchivedAt == nil {
			t.Errorf("Archive(%s) = %s archived_at=%v", s, got.Status, got.ArchivedAt)
		}
	}
}

// TestVisibility verifies the coach and student views.
func TestVisibility(t *testing.T) {
	tests := []struct {
		status              models.Status
		coach, coachAll, st bool
	}{
		{models.StatusDraft, true, true, false},
		{models.StatusPublished, true, true, true},
		{models.StatusActive, true, true, true},
		{models.StatusPaused, true, true, false},
		{models.StatusCompleted, true, true, true},
		{models.StatusArchived, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := VisibleToCoach(tt.status, false); got != tt.coach {
				t.Errorf("VisibleToCoach = %v, want %v", got, tt.coach)
			}
			if got := VisibleToCoach(tt.status, true); got != tt.coachAll {
				t.Errorf("VisibleToCoach(includeArchived) = %v, want %v", got, tt.coachAll)
			}
			if got := VisibleToStudent(tt.status); got != tt.st {
				t.Errorf("VisibleToStudent = %v, want %v", got, tt.st)
			}
		})
	}
}

// TestTable verifies the exported table uses status names.
func TestTable(t *testing.T) {
	table := Table()
	if len(table) != len(models.AllStatuses) {
		t.Fatalf("table has %d rows", len(table))
	}
	if got := table["archived"]; len(got) != 0 {
		t.Errorf("archived targets = %v", got)
	}
	if got := table["active"]; len(got) != 2 || got[0] != "paused" || got[1] != "completed" {
		t.Errorf("active targets = %v", got)
	}
}

// TestEditAmrap verifies marking and clearing AMRAP on a copy, and the
// archived read-only rule.
func TestEditAmrap(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := trainable(models.StatusActive)
	setID := uuid.New()
	m.Microcycles[0].Days[0].Exercises[0].Sets[0].ID = setID

	marked, err := EditAmrap(m, AmrapEdit{SetID: setID, IsAmrap: true, Instruction: " to failure "}, now)
	if err != nil {
		t.Fatalf("EditAmrap: %v", err)
	}
	s := marked.FindSet(setID)
	if !s.IsAmrap || s.AmrapInstruction == nil || *s.AmrapInstruction != "to failure" {
		t.Errorf("set = %+v", s)
	}
	if marked.Version != 2 || !marked.UpdatedAt.Equal(now) {
		t.Errorf("version=%d updated=%v", marked.Version, marked.UpdatedAt)
	}
	if m.FindSet(setID).IsAmrap {
		t.Error("input mesocycle was modified")
	}

	cleared, err := EditAmrap(marked, AmrapEdit{SetID: setID}, now)
	if err != nil {
		t.Fatalf("EditAmrap clear: %v", err)
	}
	if s := cleared.FindSet(setID); s.IsAmrap || s.AmrapInstruction != nil {
		t.Errorf("cleared set = %+v", s)
	}

	tests := []struct {
		name string
		m    *models.Mesocycle
		edit AmrapEdit
		want error
	}{
		{"missing instruction", m, AmrapEdit{SetID: setID, IsAmrap: true, Instruction: "  "}, planerr.ErrValidation},
		{"unknown set", m, AmrapEdit{SetID: uuid.New(), IsAmrap: true, Instruction: "x"}, planerr.ErrNotFound},
		{"archived", trainable(models.StatusArchived), AmrapEdit{SetID: setID}, planerr.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EditAmrap(tt.m, tt.edit, now); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestListingStatuses verifies the coach and student listing filters.
func TestListingStatuses(t *testing.T) {
	if got := CoachStatuses(false); len(got) != 5 {
		t.Errorf("coach statuses = %v", got)
	}
	if got := CoachStatuses(true); len(got) != len(models.AllStatuses) {
		t.Errorf("coach statuses with archived = %v", got)
	}
	want := []models.Status{models.StatusPublished, models.StatusActive, models.StatusCompleted}
	got := StudentStatuses()
	if len(got) != len(want) {
		t.Fatalf("student statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("student statuses = %v, want %v", got, want)
		}
	}
}
