package expand

import (
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

func intPtr(v int) *int { return &v }

// scenarioTemplate is the end-to-end scenario: two microcycles, one training
// day with one exercise of three 8-10 sets, and one rest day.
func scenarioTemplate() Template {
	return Template{
		Name:            "Base block",
		MicrocycleCount: 2,
		Days: []DayTemplate{
			{DayNumber: 1, Name: "Full body", Exercises: []ExerciseTemplate{{
				Catalog:   models.CatalogExercise{ID: uuid.New(), Name: "Back Squat", MuscleGroup: "Legs"},
				SetGroups: []SetGroupTemplate{{Reps: models.Reps{Min: 8, Max: 10}, Quantity: 3}},
			}}},
			{DayNumber: 2, Name: "Off", IsRestDay: true},
		},
	}
}

var twoDays = Options{DaysPerMicrocycle: 2}

// TestExpandScenario is the end-to-end expansion scenario: 2 microcycles ×
// (1 training day with 1 exercise with sets 1,2,3) + (1 rest day), status draft.
func TestExpandScenario(t *testing.T) {
	meso, err := Expand(scenarioTemplate(), twoDays)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if meso.Status != models.StatusDraft {
		t.Errorf("status = %v, want draft", meso.Status)
	}
	if len(meso.Microcycles) != 2 {
		t.Fatalf("microcycles = %d, want 2", len(meso.Microcycles))
	}
	for i, mc := range meso.Microcycles {
		if len(mc.Days) != 2 {
			t.Fatalf("microcycle %d days = %d, want 2", i, len(mc.Days))
		}
		train, rest := mc.Days[0], mc.Days[1]
		if len(train.Exercises) != 1 {
			t.Fatalf("microcycle %d exercises = %d, want 1", i, len(train.Exercises))
		}
		var orders []int
		for _, s := range train.Exercises[0].Sets {
			orders = append(orders, s.Order)
			if s.Reps.String() != "8-10" {
				t.Errorf("reps = %q, want 8-10", s.Reps)
			}
			if s.IsAmrap {
				t.Error("expanded sets must not be AMRAP")
			}
		}
		if diff := cmp.Diff([]int{1, 2, 3}, orders); diff != "" {
			t.Errorf("microcycle %d set orders (-want +got):\n%s", i, diff)
		}
		if !rest.IsRestDay || len(rest.Exercises) != 0 {
			t.Errorf("microcycle %d rest day = %+v", i, rest)
		}
	}
	if err := meso.Validate(2); err != nil {
		t.Errorf("expanded tree fails validation: %v", err)
	}
}

// TestExpandSetOrderingAcrossGroups verifies orders are global per exercise,
// contiguous 1..K however many groups contribute, and that quantity <= 0 emits one set.
func TestExpandSetOrderingAcrossGroups(t *testing.T) {
	tmpl := scenarioTemplate()
	tmpl.Days[0].Exercises[0].SetGroups = []SetGroupTemplate{
		{Reps: models.FixedReps(5), RIRTarget: intPtr(3), RestSeconds: 180, Quantity: 2},
		{Reps: models.FixedReps(8), RIRTarget: intPtr(2), RestSeconds: 120, Quantity: 0},
		{Reps: models.Reps{Min: 10, Max: 12}, RestSeconds: 90, Quantity: -4},
		{Reps: models.FixedReps(15), Quantity: 3},
	}
	meso, err := Expand(tmpl, twoDays)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	sets := meso.Microcycles[0].Days[0].Exercises[0].Sets
	if len(sets) != 7 {
		t.Fatalf("sets = %d, want 7", len(sets))
	}
	for i, s := range sets {
		if s.Order != i+1 {
			t.Errorf("sets[%d].Order = %d, want %d", i, s.Order, i+1)
		}
	}
	if sets[2].Reps != models.FixedReps(8) || *sets[2].ExpectedRIR != 2 || sets[2].RestSeconds != 120 {
		t.Errorf("quantity-0 group set = %+v", sets[2])
	}
	if sets[3].ExpectedRIR != nil || sets[3].RestSeconds != 90 {
		t.Errorf("quantity-negative group set = %+v", sets[3])
	}
}

// TestExpandRestDayPurity verifies rest days emit no exercises even when the
// template supplies some for that slot.
func TestExpandRestDayPurity(t *testing.T) {
	tmpl := scenarioTemplate()
	tmpl.Days[1].Exercises = []ExerciseTemplate{{
		Catalog:   models.CatalogExercise{Name: "Plank", MuscleGroup: "Core"},
		SetGroups: []SetGroupTemplate{{Reps: models.FixedReps(1), Quantity: 3}},
	}}
	meso, err := Expand(tmpl, twoDays)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for _, mc := range meso.Microcycles {
		for _, d := range mc.Days {
			if d.IsRestDay && len(d.Exercises) != 0 {
				t.Errorf("rest day %d has %d exercises", d.DayNumber, len(d.Exercises))
			}
		}
	}
}

// TestExpandDeloadTagging verifies count=4, deload={3} yields exactly one
// deload microcycle at 1-based position 4, named with the suffix.
func TestExpandDeloadTagging(t *testing.T) {
	tmpl := scenarioTemplate()
	tmpl.MicrocycleCount = 4
	tmpl.DeloadIndices = []int{3}
	meso, err := Expand(tmpl, twoDays)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if diff := cmp.Diff([]int{4}, deloadPositions(meso)); diff != "" {
		t.Errorf("deload positions (-want +got):\n%s", diff)
	}
	if got := meso.Microcycles[3].Name; got != "Microcycle 4 (Deload)" {
		t.Errorf("deload name = %q", got)
	}
	if got := meso.Microcycles[2].Name; got != "Microcycle 3" {
		t.Errorf("regular name = %q", got)
	}
}

// TestExpandDuplicateDeloadIndices verifies a repeated deload index is the
// same microcycle, not a validation error.
func TestExpandDuplicateDeloadIndices(t *testing.T) {
	tmpl := scenarioTemplate()
	tmpl.MicrocycleCount = 4
	tmpl.DeloadIndices = []int{3, 1, 3}
	meso, err := Expand(tmpl, twoDays)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if diff := cmp.Diff([]int{2, 4}, deloadPositions(meso)); diff != "" {
		t.Errorf("deload positions (-want +got):\n%s", diff)
	}
	if got := meso.Microcycles[3].Name; got != "Microcycle 4 (Deload)" {
		t.Errorf("deload name = %q", got)
	}
}

// TestExpandCloneIndependence verifies mutating microcycle 2's sets leaves
// microcycle 1's equivalent exercise untouched.
func TestExpandCloneIndependence(t *testing.T) {
	tmpl := scenarioTemplate()
	tmpl.Days[0].Exercises[0].SetGroups[0].RIRTarget = intPtr(2)
	meso, err := Expand(tmpl, twoDays)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	ex2 := &meso.Microcycles[1].Days[0].Exercises[0]
	ex2.Sets[0].Load = 80
	*ex2.Sets[0].ExpectedRIR = 0
	ex2.Sets = ex2.Sets[:1]

	ex1 := meso.Microcycles[0].Days[0].Exercises[0]
	if len(ex1.Sets) != 3 || ex1.Sets[0].Load != 0 || *ex1.Sets[0].ExpectedRIR != 2 {
		t.Errorf("microcycle 1 exercise changed: %+v", ex1.Sets)
	}
	if *tmpl.Days[0].Exercises[0].SetGroups[0].RIRTarget != 2 {
		t.Error("template RIR target changed")
	}
	if ex1.ID == ex2.ID {
		t.Error("exercises in different microcycles share an id")
	}
}

// TestExpandDropsBlankExercises verifies exercises with no resolvable name are
// not materialized and the remaining order indexes stay contiguous.
func TestExpandDropsBlankExercises(t *testing.T) {
	tmpl := scenarioTemplate()
	tmpl.Days[0].Exercises = append([]ExerciseTemplate{{
		Catalog:   models.CatalogExercise{Name: "   ", MuscleGroup: "Back"},
		SetGroups: []SetGroupTemplate{{Reps: models.FixedReps(10), Quantity: 2}},
	}}, tmpl.Days[0].Exercises...)
	tmpl.Days[0].Exercises = append(tmpl.Days[0].Exercises, ExerciseTemplate{
		Catalog:   models.CatalogExercise{Name: "Row", MuscleGroup: "Back"},
		Name:      "  Pendlay Row ",
		SetGroups: []SetGroupTemplate{{Reps: models.FixedReps(6), Quantity: 2}},
	})
	meso, err := Expand(tmpl, twoDays)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	exs := meso.Microcycles[0].Days[0].Exercises
	if len(exs) != 2 {
		t.Fatalf("exercises = %d, want 2", len(exs))
	}
	if exs[0].Name != "Back Squat" || exs[0].OrderIndex != 1 {
		t.Errorf("exs[0] = %s/%d", exs[0].Name, exs[0].OrderIndex)
	}
	if exs[1].Name != "Pendlay Row" || exs[1].OrderIndex != 2 || exs[1].CatalogID != nil {
		t.Errorf("exs[1] = %s/%d catalog=%v", exs[1].Name, exs[1].OrderIndex, exs[1].CatalogID)
	}
}

// TestExpandPadsMissingDays verifies every microcycle owns exactly the
// configured number of days, with unspecified slots as rest days.
func TestExpandPadsMissingDays(t *testing.T) {
	meso, err := Expand(scenarioTemplate(), Options{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for _, mc := range meso.Microcycles {
		if len(mc.Days) != 7 {
			t.Fatalf("days = %d, want 7", len(mc.Days))
		}
		for _, d := range mc.Days[2:] {
			if !d.IsRestDay {
				t.Errorf("padded day %d is not a rest day", d.DayNumber)
			}
		}
	}
	if err := meso.Validate(7); err != nil {
		t.Errorf("validation: %v", err)
	}
}

// TestExpandDates verifies the tree is dated when the template has a start date.
func TestExpandDates(t *testing.T) {
	tmpl := scenarioTemplate()
	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	tmpl.StartDate = &start
	meso, err := Expand(tmpl, Options{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got := meso.EndDate.Format("2006-01-02"); got != "2026-04-19" {
		t.Errorf("end = %s, want 2026-04-19", got)
	}
	if got := meso.Microcycles[1].Days[0].Date.Format("2006-01-02"); got != "2026-04-13" {
		t.Errorf("week 2 day 1 = %s, want 2026-04-13", got)
	}
}

// TestExpandRejectsInvalid covers the validation errors raised before expansion.
func TestExpandRejectsInvalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(t *Template)
		wantField string
	}{
		{"zero microcycles", func(t *Template) { t.MicrocycleCount = 0 }, "microcycle_count"},
		{"negative microcycles", func(t *Template) { t.MicrocycleCount = -2 }, "microcycle_count"},
		{"deload out of range", func(t *Template) { t.DeloadIndices = []int{2} }, "deload_indices"},
		{"negative deload", func(t *Template) { t.DeloadIndices = []int{-1} }, "deload_indices"},
		{"no days", func(t *Template) { t.Days = nil }, "days"},
		{"all rest", func(t *Template) { t.Days[0].IsRestDay = true }, "days"},
		{"only blank exercises", func(t *Template) { t.Days[0].Exercises[0].Catalog.Name = "" }, "days"},
		{"day number too high", func(t *Template) { t.Days[1].DayNumber = 3 }, "days[1].day_number"},
		{"duplicate day", func(t *Template) { t.Days[1].DayNumber = 1 }, "days[1].day_number"},
		{"blank name", func(t *Template) { t.Name = "" }, "name"},
		{"zero reps", func(t *Template) { t.Days[0].Exercises[0].SetGroups[0].Reps = models.Reps{} }, "days[0].exercises[0].set_groups[0].reps"},
		{"negative rir", func(t *Template) { t.Days[0].Exercises[0].SetGroups[0].RIRTarget = intPtr(-1) }, "days[0].exercises[0].set_groups[0].rir_target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := scenarioTemplate()
			tt.mutate(&tmpl)
			meso, err := Expand(tmpl, twoDays)
			if meso != nil {
				t.Error("expected no mesocycle on error")
			}
			if !errors.Is(err, planerr.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
			e, _ := planerr.As(err)
			if e.Field != tt.wantField {
				t.Errorf("field = %q, want %q", e.Field, tt.wantField)
			}
		})
	}
}

// TestDecodeYAML verifies a coach-authored YAML template decodes and expands.
func TestDecodeYAML(t *testing.T) {
	doc := `
name: Strength block
objective: Build a base
microcycle_count: 4
deload_indices: [3]
days:
  - day_number: 1
    name: Lower
    exercises:
      - catalog: {name: Deadlift, muscle_group: Posterior chain}
        set_groups:
          - {reps: 5, rir_target: 2, rest_seconds: 180, quantity: 3, load: 120}
          - {reps: "8-10", quantity: 1}
  - day_number: 2
    name: Rest
    is_rest_day: true
`
	tmpl, err := DecodeYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	meso, err := Expand(*tmpl, Options{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	sets := meso.Microcycles[0].Days[0].Exercises[0].Sets
	if len(sets) != 4 || sets[0].Load != 120 || sets[3].Reps.String() != "8-10" {
		t.Errorf("sets = %+v", sets)
	}
	if diff := cmp.Diff([]int{4}, deloadPositions(meso)); diff != "" {
		t.Errorf("deload positions (-want +got):\n%s", diff)
	}
}

// TestDecodeYAMLUnknownField verifies typos in template files are rejected.
func TestDecodeYAMLUnknownField(t *testing.T) {
	_, err := DecodeYAML(strings.NewReader("name: x\nmicrocycle_cuont: 3\n"))
	if !errors.Is(err, planerr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

// deloadPositions returns the 1-based positions of deload microcycles, sorted.
func deloadPositions(m *models.Mesocycle) []int {
	var out []int
	for _, mc := range m.Microcycles {
		if mc.IsDeload {
			out = append(out, mc.Index+1)
		}
	}
	sort.Ints(out)
	return out
}
