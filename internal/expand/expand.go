package expand

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// DefaultDeloadSuffix is appended to the name of deload microcycles.
const DefaultDeloadSuffix = " (Deload)"

// Options controls expansion. Zero values select the defaults.
type Options struct {
	DaysPerMicrocycle int
	DeloadSuffix      string
	NewID             func() uuid.UUID
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if o.DaysPerMicrocycle <= 0 {
		o.DaysPerMicrocycle = models.DefaultDaysPerMicrocycle
	}
	if o.DeloadSuffix == "" {
		o.DeloadSuffix = DefaultDeloadSuffix
	}
	if o.NewID == nil {
		o.NewID = uuid.New
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Expand validates t and materializes it into a draft mesocycle. Either the
// whole tree is returned or an error and nothing.
func Expand(t Template, opts Options) (*models.Mesocycle, error) {
	opts = opts.withDefaults()
	if err := Validate(t, opts.DaysPerMicrocycle); err != nil {
		return nil, err
	}

	deload := make(map[int]bool, len(t.DeloadIndices))
	for _, i := range t.DeloadIndices {
		deload[i] = true
	}

	// Day templates ordered by day number; gaps become rest days.
	byNumber := make(map[int]DayTemplate, len(t.Days))
	for _, d := range t.Days {
		byNumber[d.DayNumber] = d
	}

	now := opts.Now().UTC()
	meso := &models.Mesocycle{
		ID:          opts.NewID(),
		CoachID:     t.CoachID,
		Name:        strings.TrimSpace(t.Name),
		Objective:   strings.TrimSpace(t.Objective),
		Status:      models.StatusDraft,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		Microcycles: make([]models.Microcycle, 0, t.MicrocycleCount),
	}

	for i := 0; i < t.MicrocycleCount; i++ {
		mc := models.Microcycle{
			ID:       opts.NewID(),
			Index:    i,
			Name:     fmt.Sprintf("Microcycle %d", i+1),
			IsDeload: deload[i],
			Days:     make([]models.Day, 0, opts.DaysPerMicrocycle),
		}
		if mc.IsDeload {
			mc.Name += opts.DeloadSuffix
		}
		for n := 1; n <= opts.DaysPerMicrocycle; n++ {
			dt, ok := byNumber[n]
			if !ok {
				dt = DayTemplate{DayNumber: n, Name: "Rest", IsRestDay: true}
			}
			mc.Days = append(mc.Days, expandDay(dt, opts.NewID))
		}
		meso.Microcycles = append(meso.Microcycles, mc)
	}

	if t.StartDate != nil {
		meso.Redate(*t.StartDate)
	}
	return meso, nil
}

// expandDay builds a fresh day from its template. Nothing in the returned
// value aliases the template, so every microcycle owns an independent copy.
func expandDay(dt DayTemplate, newID func() uuid.UUID) models.Day {
	day := models.Day{
		ID:        newID(),
		DayNumber: dt.DayNumber,
		Name:      strings.TrimSpace(dt.Name),
		IsRestDay: dt.IsRestDay,
		Exercises: []models.Exercise{},
	}
	if dt.IsRestDay {
		return day
	}
	for _, et := range dt.Exercises {
		r := et.resolve()
		if r.name == "" {
			continue
		}
		ex := models.Exercise{
			ID:          newID(),
			CatalogID:   r.catalogID,
			Name:        r.name,
			MuscleGroup: r.muscleGroup,
			OrderIndex:  len(day.Exercises) + 1,
			Sets:        expandSets(et.SetGroups, newID),
		}
		day.Exercises = append(day.Exercises, ex)
	}
	return day
}

// expandSets emits Quantity sets per group in template order. The order
// counter runs across groups so one exercise always has orders 1..K.
func expandSets(groups []SetGroupTemplate, newID func() uuid.UUID) []models.Set {
	sets := []models.Set{}
	order := 0
	for _, g := range groups {
		q := g.Quantity
		if q <= 0 {
			q = 1
		}
		for range q {
			order++
			var rir *int
			if g.RIRTarget != nil {
				v := *g.RIRTarget
				rir = &v
			}
			sets = append(sets, models.Set{
				ID:          newID(),
				Order:       order,
				Reps:        g.Reps,
				ExpectedRIR: rir,
				RestSeconds: g.RestSeconds,
				Load:        g.Load,
			})
		}
	}
	return sets
}

// Validate rejects malformed templates before any expansion runs.
func Validate(t Template, daysPerMicrocycle int) error {
	if daysPerMicrocycle <= 0 {
		daysPerMicrocycle = models.DefaultDaysPerMicrocycle
	}
	if strings.TrimSpace(t.Name) == "" {
		return planerr.Validation("name", "must not be blank")
	}
	if t.MicrocycleCount < 1 {
		return planerr.Validation("microcycle_count", "must be at least 1, got %d", t.MicrocycleCount)
	}
	// Repeated indices name the same microcycle.
	for _, i := range t.DeloadIndices {
		if i < 0 || i >= t.MicrocycleCount {
			return planerr.Validation("deload_indices", "index %d is outside 0..%d", i, t.MicrocycleCount-1)
		}
	}
	if len(t.Days) == 0 {
		return planerr.Validation("days", "template has no days")
	}

	seenDay := make(map[int]bool, len(t.Days))
	trainable := false
	for i, d := range t.Days {
		path := fmt.Sprintf("days[%d]", i)
		if d.DayNumber < 1 || d.DayNumber > daysPerMicrocycle {
			return planerr.Validation(path+".day_number", "%d is outside 1..%d", d.DayNumber, daysPerMicrocycle)
		}
		if seenDay[d.DayNumber] {
			return planerr.Validation(path+".day_number", "day %d is defined twice", d.DayNumber)
		}
		seenDay[d.DayNumber] = true
		if d.IsRestDay {
			continue
		}
		for j, et := range d.Exercises {
			ep := fmt.Sprintf("%s.exercises[%d]", path, j)
			if et.resolve().name == "" {
				continue
			}
			trainable = true
			for k, g := range et.SetGroups {
				gp := fmt.Sprintf("%s.set_groups[%d]", ep, k)
				if err := g.Reps.Validate(); err != nil {
					return planerr.Validation(gp+".reps", "%s", repsMsg(err))
				}
				if g.RIRTarget != nil && *g.RIRTarget < 0 {
					return planerr.Validation(gp+".rir_target", "must not be negative")
				}
				if g.RestSeconds < 0 {
					return planerr.Validation(gp+".rest_seconds", "must not be negative")
				}
				if g.Load < 0 {
					return planerr.Validation(gp+".load", "must not be negative")
				}
			}
		}
	}
	if !trainable {
		return planerr.Validation("days", "template has no training day with a named exercise")
	}
	return nil
}

func repsMsg(err error) string {
	if e, ok := planerr.As(err); ok {
		return e.Msg
	}
	return err.Error()
}
