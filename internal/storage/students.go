package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
)

// UpsertStudent creates a student or updates its coach and name. Students
// are owned by the surrounding application; this keeps a local copy for
// ownership checks.
func (db *DB) UpsertStudent(ctx context.Context, s *models.Student) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO students (id, coach_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
			SET coach_id = EXCLUDED.coach_id, name = COALESCE(NULLIF(EXCLUDED.name, ''), students.name)
	`, s.ID, s.CoachID, s.Name)
	if err != nil {
		return fmt.Errorf("upserting student: %w", err)
	}
	return nil
}

// GetStudent returns the student with the given id.
func (db *DB) GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var s models.Student
	err := db.Pool.QueryRow(ctx,
		`SELECT id, coach_id, name FROM students WHERE id = $1`, id).
		Scan(&s.ID, &s.CoachID, &s.Name)
	if err != nil {
		return nil, classify(err, "querying student", "student", id)
	}
	return &s, nil
}
