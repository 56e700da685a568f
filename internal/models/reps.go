package models

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/meltforce/mesoplan/internal/planerr"
)

// repsRe matches "8" or "8-10" (spaces and en dash tolerated).
var repsRe = regexp.MustCompile(`^(\d+)\s*(?:[-–]\s*(\d+))?$`)

// Reps is a rep target: a fixed count (Min == Max) or a range such as 8-10.
type Reps struct {
	Min int
	Max int
}

// FixedReps returns a single-count rep target.
func FixedReps(n int) Reps { return Reps{Min: n, Max: n} }

// ParseReps parses "8" or "8-10".
func ParseReps(s string) (Reps, error) {
	m := repsRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Reps{}, planerr.Validation("reps", "cannot parse %q (want N or N-M)", s)
	}
	lo, _ := strconv.Atoi(m[1])
	hi := lo
	if m[2] != "" {
		hi, _ = strconv.Atoi(m[2])
	}
	r := Reps{Min: lo, Max: hi}
	if err := r.Validate(); err != nil {
		return Reps{}, err
	}
	return r, nil
}

// Validate checks that the target is at least one rep and the range is ordered.
func (r Reps) Validate() error {
	if r.Min < 1 {
		return planerr.Validation("reps", "must be at least 1, got %d", r.Min)
	}
	if r.Max < r.Min {
		return planerr.Validation("reps", "range %d-%d is reversed", r.Min, r.Max)
	}
	return nil
}

// IsZero reports whether no rep target was set.
func (r Reps) IsZero() bool { return r.Min == 0 && r.Max == 0 }

// IsRange reports whether the target spans more than one count.
func (r Reps) IsRange() bool { return r.Max > r.Min }

func (r Reps) String() string {
	if r.IsZero() {
		return ""
	}
	if r.IsRange() {
		return strconv.Itoa(r.Min) + "-" + strconv.Itoa(r.Max)
	}
	return strconv.Itoa(r.Min)
}

// MarshalText implements encoding.TextMarshaler.
func (r Reps) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. YAML scalars such as
// `reps: 8` and `reps: "8-10"` both arrive here.
func (r *Reps) UnmarshalText(b []byte) error {
	parsed, err := ParseReps(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UnmarshalJSON accepts either a JSON number (8) or a string ("8-10").
func (r *Reps) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return planerr.Validation("reps", "invalid string: %v", err)
		}
		return r.UnmarshalText([]byte(s))
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return planerr.Validation("reps", "must be an integer or a range string")
	}
	parsed := FixedReps(n)
	if err := parsed.Validate(); err != nil {
		return err
	}
	*r = parsed
	return nil
}
