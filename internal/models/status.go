package models

import (
	"encoding/json"
	"strings"

	"github.com/meltforce/mesoplan/internal/planerr"
)

// Status is the lifecycle state of a mesocycle. The zero value is not a
// valid status; text is converted only at the boundary via ParseStatus.
type Status uint8

const (
	StatusDraft Status = iota + 1
	StatusPublished
	StatusActive
	StatusPaused
	StatusCompleted
	StatusArchived
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusPublished,
	StatusActive,
	StatusPaused,
	StatusCompleted,
	StatusArchived,
}

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusPublished:
		return "published"
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusArchived:
		return "archived"
	}
	return "unknown"
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return s >= StatusDraft && s <= StatusArchived
}

// ParseStatus converts a status name (case-insensitive) into a Status.
func ParseStatus(raw string) (Status, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range AllStatuses {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, planerr.Validation("status", "unknown status %q", raw)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, planerr.Validation("status", "cannot encode invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON encodes the status name as a JSON string.
func (s Status) MarshalJSON() ([]byte, error) {
	b, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(b))
}

// UnmarshalJSON decodes a JSON string status name.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return planerr.Validation("status", "status must be a string")
	}
	return s.UnmarshalText([]byte(name))
}
