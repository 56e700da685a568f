package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/meltforce/mesoplan/internal/expand"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/xuri/excelize/v2"
)

func expanded(t *testing.T) *models.Mesocycle {
	t.Helper()
	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	m, err := expand.Expand(expand.Template{
		Name:            "Peaking",
		StartDate:       &start,
		MicrocycleCount: 2,
		DeloadIndices:   []int{1},
		Days: []expand.DayTemplate{
			{DayNumber: 1, Name: "Heavy", Exercises: []expand.ExerciseTemplate{{
				Catalog:   models.CatalogExercise{Name: "Bench Press", MuscleGroup: "Chest"},
				SetGroups: []expand.SetGroupTemplate{{Reps: models.FixedReps(3), Quantity: 2, Load: 100}},
			}}},
		},
	}, expand.Options{DaysPerMicrocycle: 3})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	return m
}

// TestWorkbookSheets verifies one overview plus one sheet per microcycle.
func TestWorkbookSheets(t *testing.T) {
	f, err := Workbook(expanded(t))
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}
	defer f.Close()

	got := f.GetSheetList()
	want := []string{SheetOverview, "Microcycle 1", "Microcycle 2 (Deload)"}
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if v, _ := f.GetCellValue(SheetOverview, "A1"); v != "Peaking" {
		t.Errorf("title = %q", v)
	}
}

// TestWorkbookRoundTrip verifies the written bytes reopen with one row per set
// and one row per rest day.
func TestWorkbookRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, expanded(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Microcycle 1")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// header + 2 sets + 2 rest days
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5: %v", len(rows), rows)
	}
	if rows[1][4] != "Bench Press" || rows[1][7] != "3" || rows[1][10] != "100" {
		t.Errorf("first set row = %v", rows[1])
	}
	if rows[1][1] != "2026-04-06" {
		t.Errorf("date = %q", rows[1][1])
	}
	if rows[3][2] != "Rest" {
		t.Errorf("rest row = %v", rows[3])
	}
}

// TestSheetName verifies invalid characters, length and uniqueness.
func TestSheetName(t *testing.T) {
	used := map[string]bool{SheetOverview: true}
	long := models.Microcycle{Name: "Week 1: accumulation [high volume] / base phase"}
	first := sheetName(long, used)
	if len([]rune(first)) > 31 {
		t.Errorf("name too long: %q", first)
	}
	for _, c := range `:\/?*[]` {
		if bytes.ContainsRune([]byte(first), c) {
			t.Errorf("name %q contains %q", first, c)
		}
	}
	used[first] = true
	second := sheetName(long, used)
	if second == first || len([]rune(second)) > 31 {
		t.Errorf("second name = %q", second)
	}
	if got := sheetName(models.Microcycle{Index: 2}, used); got != "Microcycle 3" {
		t.Errorf("blank name = %q", got)
	}
}
