// Package export renders an expanded mesocycle as an .xlsx workbook: an
// overview sheet plus one sheet per microcycle listing every prescribed set.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/meltforce/mesoplan/internal/models"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetOverview is the name of the first sheet.
const SheetOverview = "Overview"

var setColumns = []string{"Day", "Date", "Session", "#", "Exercise", "Muscle group",
	"Set", "Reps", "RIR", "Rest (s)", "Load (kg)", "AMRAP"}

// Workbook builds the workbook for m. The caller closes the returned file.
func Workbook(m *models.Mesocycle) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetOverview); err != nil {
		f.Close()
		return nil, fmt.Errorf("renaming overview sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := writeOverview(f, st, m); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing overview: %w", err)
	}

	used := map[string]bool{SheetOverview: true}
	for _, mc := range m.Microcycles {
		name := sheetName(mc, used)
		used[name] = true
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("creating sheet %q: %w", name, err)
		}
		if err := writeMicrocycle(f, st, name, mc); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing %s: %w", mc.Name, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write renders m as .xlsx into w.
func Write(w io.Writer, m *models.Mesocycle) error {
	f, err := Workbook(m)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

type styles struct {
	title, header, label, deload, rest int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.title, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 16, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"2E75B6"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&st.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F4E79"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
			Border: []excelize.Border{
				{Type: "left", Color: "000000", Style: 1},
				{Type: "right", Color: "000000", Style: 1},
				{Type: "top", Color: "000000", Style: 1},
				{Type: "bottom", Color: "000000", Style: 1},
			},
		}},
		{&st.label, &excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"E2EFDA"}, Pattern: 1},
		}},
		{&st.deload, &excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{"FFF2CC"}, Pattern: 1},
		}},
		{&st.rest, &excelize.Style{
			Font: &excelize.Font{Italic: true, Color: "808080"},
		}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return st, fmt.Errorf("creating style: %w", err)
		}
		*d.dst = id
	}
	return st, nil
}

func writeOverview(f *excelize.File, st styles, m *models.Mesocycle) error {
	sheet := SheetOverview
	if err := f.SetCellValue(sheet, "A1", m.Name); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "A1", "G1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "G1", st.title); err != nil {
		return err
	}
	if err := f.SetRowHeight(sheet, 1, 30); err != nil {
		return err
	}

	info := [][2]string{
		{"Objective", m.Objective},
		{"Status", m.Status.String()},
		{"Start", formatDate(m.StartDate)},
		{"End", formatDate(m.EndDate)},
		{"Microcycles", fmt.Sprintf("%d", len(m.Microcycles))},
		{"Sets", fmt.Sprintf("%d", m.SetCount())},
	}
	for i, row := range info {
		r := i + 3
		if err := f.SetCellValue(sheet, cell(1, r), row[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell(2, r), row[1]); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell(1, r), cell(1, r), st.label); err != nil {
			return err
		}
	}

	header := 3 + len(info) + 1
	cols := []string{"#", "Microcycle", "Deload", "Start", "End", "Training days", "Sets"}
	if err := writeHeader(f, st, sheet, header, cols); err != nil {
		return err
	}
	for i, mc := range m.Microcycles {
		r := header + 1 + i
		training, sets := 0, 0
		for _, d := range mc.Days {
			if !d.IsRestDay && len(d.Exercises) > 0 {
				training++
			}
			for _, ex := range d.Exercises {
				sets += len(ex.Sets)
			}
		}
		deload := ""
		if mc.IsDeload {
			deload = "yes"
		}
		values := []any{mc.Index + 1, mc.Name, deload, formatDate(mc.StartDate), formatDate(mc.EndDate), training, sets}
		if err := f.SetSheetRow(sheet, cell(1, r), &values); err != nil {
			return err
		}
		if mc.IsDeload {
			if err := f.SetCellStyle(sheet, cell(1, r), cell(len(cols), r), st.deload); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 14); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "B", 30)
}

func writeMicrocycle(f *excelize.File, st styles, sheet string, mc models.Microcycle) error {
	if err := writeHeader(f, st, sheet, 1, setColumns); err != nil {
		return err
	}
	r := 2
	for _, d := range mc.Days {
		if d.IsRestDay || len(d.Exercises) == 0 {
			values := []any{d.DayNumber, formatDate(d.Date), dayLabel(d)}
			if err := f.SetSheetRow(sheet, cell(1, r), &values); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, cell(1, r), cell(len(setColumns), r), st.rest); err != nil {
				return err
			}
			r++
			continue
		}
		for _, ex := range d.Exercises {
			for _, s := range ex.Sets {
				values := []any{d.DayNumber, formatDate(d.Date), d.Name, ex.OrderIndex, ex.Name,
					ex.MuscleGroup, s.Order, s.Reps.String(), rirCell(s.ExpectedRIR), s.RestSeconds,
					s.Load, amrapCell(s)}
				if err := f.SetSheetRow(sheet, cell(1, r), &values); err != nil {
					return err
				}
				r++
			}
		}
	}
	if err := f.SetColWidth(sheet, "C", "C", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "E", "F", 22); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "L", "L", 30)
}

func writeHeader(f *excelize.File, st styles, sheet string, row int, cols []string) error {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell(1, row), &values); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell(1, row), cell(len(cols), row), st.header)
}

func dayLabel(d models.Day) string {
	if d.Name != "" {
		return d.Name
	}
	return "Rest"
}

func rirCell(rir *int) any {
	if rir == nil {
		return ""
	}
	return *rir
}

func amrapCell(s models.Set) string {
	if !s.IsAmrap || s.AmrapInstruction == nil {
		return ""
	}
	if s.AmrapNotes != nil && *s.AmrapNotes != "" {
		return *s.AmrapInstruction + " (" + *s.AmrapNotes + ")"
	}
	return *s.AmrapInstruction
}

// sheetName derives a unique, valid sheet name for mc. Excel limits names
// to 31 characters and forbids : \ / ? * [ ].
func sheetName(mc models.Microcycle, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(mc.Name))
	if name == "" {
		name = fmt.Sprintf("Microcycle %d", mc.Index+1)
	}
	base := name
	name = truncate(base, 31)
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" %d", n)
		name = truncate(base, 31-len(suffix)) + suffix
	}
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
