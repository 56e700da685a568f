// Package expand turns an authored mesocycle template into a concrete,
// persistable hierarchy of microcycles, days, exercises and sets.
package expand

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
	"gopkg.in/yaml.v3"
)

// Template is one mesocycle's worth of authored training days.
type Template struct {
	Name            string        `json:"name" yaml:"name"`
	Objective       string        `json:"objective" yaml:"objective"`
	CoachID         uuid.UUID     `json:"coach_id" yaml:"coach_id"`
	StartDate       *time.Time    `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	MicrocycleCount int           `json:"microcycle_count" yaml:"microcycle_count"`
	DeloadIndices   []int         `json:"deload_indices" yaml:"deload_indices"`
	Days            []DayTemplate `json:"days" yaml:"days"`
}

// DayTemplate describes one day slot of every microcycle.
type DayTemplate struct {
	DayNumber int                `json:"day_number" yaml:"day_number"`
	Name      string             `json:"name" yaml:"name"`
	IsRestDay bool               `json:"is_rest_day" yaml:"is_rest_day"`
	Exercises []ExerciseTemplate `json:"exercises" yaml:"exercises"`
}

// ExerciseTemplate references a catalog exercise. Name, when set, overrides
// the catalog name.
type ExerciseTemplate struct {
	Catalog   models.CatalogExercise `json:"catalog" yaml:"catalog"`
	Name      string                 `json:"name,omitempty" yaml:"name,omitempty"`
	SetGroups []SetGroupTemplate     `json:"set_groups" yaml:"set_groups"`
}

// SetGroupTemplate is shorthand for Quantity identical sets.
type SetGroupTemplate struct {
	Reps        models.Reps `json:"reps" yaml:"reps"`
	RIRTarget   *int        `json:"rir_target,omitempty" yaml:"rir_target,omitempty"`
	RestSeconds int         `json:"rest_seconds" yaml:"rest_seconds"`
	Quantity    int         `json:"quantity" yaml:"quantity"`
	Load        float64     `json:"load,omitempty" yaml:"load,omitempty"`
}

// resolved is a catalog reference resolved into the values an instance carries.
type resolved struct {
	catalogID   *uuid.UUID
	name        string
	muscleGroup string
}

// resolve applies the name override and trims. A blank name means the
// exercise is not materialized.
func (e ExerciseTemplate) resolve() resolved {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = strings.TrimSpace(e.Catalog.Name)
	}
	r := resolved{name: name, muscleGroup: strings.TrimSpace(e.Catalog.MuscleGroup)}
	if e.Catalog.ID != uuid.Nil {
		id := e.Catalog.ID
		r.catalogID = &id
	}
	return r
}

// DecodeYAML reads a template from a YAML document.
func DecodeYAML(r io.Reader) (*Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	var t Template
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		if pe, ok := planerr.As(err); ok {
			return nil, pe
		}
		return nil, planerr.Validation("template", "invalid YAML: %v", err)
	}
	return &t, nil
}
