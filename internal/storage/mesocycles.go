package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

const mesocycleColumns = `id, macrocycle_id, coach_id, name, objective, start_date, end_date,
	status, version, created_at, updated_at, archived_at`

// CreateMesocycle inserts a mesocycle and its whole tree in one transaction.
func (db *DB) CreateMesocycle(ctx context.Context, m *models.Mesocycle) error {
	if err := m.Validate(0); err != nil {
		return err
	}
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		return insertMesocycleTree(ctx, tx, m)
	})
	return classify(err, "creating mesocycle", "mesocycle", m.ID)
}

func insertMesocycleTree(ctx context.Context, tx pgx.Tx, m *models.Mesocycle) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO mesocycles (`+mesocycleColumns+`, position)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,
		   COALESCE((SELECT MAX(position) + 1 FROM mesocycles WHERE macrocycle_id = $2), 0))`,
		m.ID, m.MacrocycleID, m.CoachID, m.Name, m.Objective,
		models.NullableDate(m.StartDate), models.NullableDate(m.EndDate),
		m.Status.String(), m.Version, m.CreatedAt, m.UpdatedAt, m.ArchivedAt)
	if err != nil {
		return fmt.Errorf("inserting mesocycle: %w", err)
	}

	rows := models.Flatten(m)
	if err := batchInsert(ctx, tx, "microcycles",
		[]string{"id", "mesocycle_id", "idx", "name", "is_deload", "start_date", "end_date"},
		len(rows.Microcycles), func(i int) []any {
			r := rows.Microcycles[i]
			return []any{r.ID, r.MesocycleID, r.Index, r.Name, r.IsDeload, r.StartDate, r.EndDate}
		}); err != nil {
		return err
	}
	if err := batchInsert(ctx, tx, "days",
		[]string{"id", "microcycle_id", "day_number", "name", "is_rest_day", "date"},
		len(rows.Days), func(i int) []any {
			r := rows.Days[i]
			return []any{r.ID, r.MicrocycleID, r.DayNumber, r.Name, r.IsRestDay, r.Date}
		}); err != nil {
		return err
	}
	if err := batchInsert(ctx, tx, "exercises",
		[]string{"id", "day_id", "catalog_id", "name", "muscle_group", "order_index"},
		len(rows.Exercises), func(i int) []any {
			r := rows.Exercises[i]
			return []any{r.ID, r.DayID, r.CatalogID, r.Name, r.MuscleGroup, r.OrderIndex}
		}); err != nil {
		return err
	}
	return batchInsert(ctx, tx, "sets",
		[]string{"id", "exercise_id", "set_order", "reps_min", "reps_max", "expected_rir",
			"rest_seconds", "load_kg", "is_amrap", "amrap_instruction", "amrap_notes"},
		len(rows.Sets), func(i int) []any {
			r := rows.Sets[i]
			return []any{r.ID, r.ExerciseID, r.Order, r.RepsMin, r.RepsMax, r.ExpectedRIR,
				r.RestSeconds, r.Load, r.IsAmrap, r.AmrapInstruction, r.AmrapNotes}
		})
}

// scanMesocycle reads one row selected with mesocycleColumns.
func scanMesocycle(row pgx.Row) (*models.Mesocycle, error) {
	var (
		m          models.Mesocycle
		status     string
		start, end *time.Time
	)
	if err := row.Scan(&m.ID, &m.MacrocycleID, &m.CoachID, &m.Name, &m.Objective, &start, &end,
		&status, &m.Version, &m.CreatedAt, &m.UpdatedAt, &m.ArchivedAt); err != nil {
		return nil, err
	}
	s, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("stored mesocycle %s: %w", m.ID, err)
	}
	m.Status = s
	if start != nil {
		m.StartDate = start.UTC()
	}
	if end != nil {
		m.EndDate = end.UTC()
	}
	return &m, nil
}

// GetMesocycle loads a mesocycle with its full tree.
func (db *DB) GetMesocycle(ctx context.Context, id uuid.UUID) (*models.Mesocycle, error) {
	m, err := scanMesocycle(db.Pool.QueryRow(ctx,
		`SELECT `+mesocycleColumns+` FROM mesocycles WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "querying mesocycle", "mesocycle", id)
	}
	rows, err := db.loadTree(ctx, id)
	if err != nil {
		return nil, err
	}
	models.Assemble(m, rows)
	return m, nil
}

func (db *DB) loadTree(ctx context.Context, mesoID uuid.UUID) (models.TreeRows, error) {
	var t models.TreeRows

	rows, err := db.Pool.Query(ctx,
		`SELECT id, mesocycle_id, idx, name, is_deload, start_date, end_date
		 FROM microcycles WHERE mesocycle_id = $1`, mesoID)
	if err != nil {
		return t, fmt.Errorf("querying microcycles: %w", err)
	}
	for rows.Next() {
		var r models.MicrocycleRow
		if err := rows.Scan(&r.ID, &r.MesocycleID, &r.Index, &r.Name, &r.IsDeload, &r.StartDate, &r.EndDate); err != nil {
			rows.Close()
			return t, fmt.Errorf("scanning microcycle: %w", err)
		}
		t.Microcycles = append(t.Microcycles, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("reading microcycles: %w", err)
	}

	rows, err = db.Pool.Query(ctx,
		`SELECT d.id, d.microcycle_id, d.day_number, d.name, d.is_rest_day, d.date
		 FROM days d JOIN microcycles mc ON mc.id = d.microcycle_id
		 WHERE mc.mesocycle_id = $1`, mesoID)
	if err != nil {
		return t, fmt.Errorf("querying days: %w", err)
	}
	for rows.Next() {
		var r models.DayRow
		if err := rows.Scan(&r.ID, &r.MicrocycleID, &r.DayNumber, &r.Name, &r.IsRestDay, &r.Date); err != nil {
			rows.Close()
			return t, fmt.Errorf("scanning day: %w", err)
		}
		t.Days = append(t.Days, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("reading days: %w", err)
	}

	rows, err = db.Pool.Query(ctx,
		`SELECT e.id, e.day_id, e.catalog_id, e.name, e.muscle_group, e.order_index
		 FROM exercises e
		 JOIN days d ON d.id = e.day_id
		 JOIN microcycles mc ON mc.id = d.microcycle_id
		 WHERE mc.mesocycle_id = $1`, mesoID)
	if err != nil {
		return t, fmt.Errorf("querying exercises: %w", err)
	}
	for rows.Next() {
		var r models.ExerciseRow
		if err := rows.Scan(&r.ID, &r.DayID, &r.CatalogID, &r.Name, &r.MuscleGroup, &r.OrderIndex); err != nil {
			rows.Close()
			return t, fmt.Errorf("scanning exercise: %w", err)
		}
		t.Exercises = append(t.Exercises, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("reading exercises: %w", err)
	}

	rows, err = db.Pool.Query(ctx,
		`SELECT s.id, s.exercise_id, s.set_order, s.reps_min, s.reps_max, s.expected_rir,
		        s.rest_seconds, s.load_kg, s.is_amrap, s.amrap_instruction, s.amrap_notes
		 FROM sets s
		 JOIN exercises e ON e.id = s.exercise_id
		 JOIN days d ON d.id = e.day_id
		 JOIN microcycles mc ON mc.id = d.microcycle_id
		 WHERE mc.mesocycle_id = $1`, mesoID)
	if err != nil {
		return t, fmt.Errorf("querying sets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.SetRow
		if err := rows.Scan(&r.ID, &r.ExerciseID, &r.Order, &r.RepsMin, &r.RepsMax, &r.ExpectedRIR,
			&r.RestSeconds, &r.Load, &r.IsAmrap, &r.AmrapInstruction, &r.AmrapNotes); err != nil {
			return t, fmt.Errorf("scanning set: %w", err)
		}
		t.Sets = append(t.Sets, r)
	}
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("reading sets: %w", err)
	}
	return t, nil
}

// listQuery builds the listing query for f.
func listQuery(f models.MesocycleFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.CoachID != nil {
		where = append(where, "m.coach_id = "+arg(*f.CoachID))
	}
	if f.StudentID != nil {
		where = append(where, "mac.student_id = "+arg(*f.StudentID))
	}
	if f.TemplatesOnly {
		where = append(where, "m.macrocycle_id IS NULL")
	}
	if len(f.Statuses) > 0 {
		names := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			names[i] = s.String()
		}
		where = append(where, "m.status = ANY("+arg(names)+")")
	}

	q := `SELECT m.id, m.macrocycle_id, m.coach_id, m.name, m.objective, m.start_date, m.end_date,
	        m.status, m.version, m.updated_at,
	        (SELECT COUNT(*) FROM microcycles mc WHERE mc.mesocycle_id = m.id),
	        (SELECT COUNT(*) FROM sets s
	           JOIN exercises e ON e.id = s.exercise_id
	           JOIN days d ON d.id = e.day_id
	           JOIN microcycles mc ON mc.id = d.microcycle_id
	          WHERE mc.mesocycle_id = m.id)
	      FROM mesocycles m
	      LEFT JOIN macrocycles mac ON mac.id = m.macrocycle_id`
	if len(where) > 0 {
		q += "\n WHERE " + strings.Join(where, " AND ")
	}
	q += "\n ORDER BY m.updated_at DESC, m.id"
	return q, args
}

// ListMesocycles returns summaries of the mesocycles matching f.
func (db *DB) ListMesocycles(ctx context.Context, f models.MesocycleFilter) ([]models.MesocycleSummary, error) {
	q, args := listQuery(f)
	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying mesocycles: %w", err)
	}
	defer rows.Close()

	result := []models.MesocycleSummary{}
	for rows.Next() {
		var (
			s          models.MesocycleSummary
			status     string
			start, end *time.Time
		)
		if err := rows.Scan(&s.ID, &s.MacrocycleID, &s.CoachID, &s.Name, &s.Objective, &start, &end,
			&status, &s.Version, &s.UpdatedAt, &s.MicrocycleCount, &s.SetCount); err != nil {
			return nil, fmt.Errorf("scanning mesocycle: %w", err)
		}
		if s.Status, err = models.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("stored mesocycle %s: %w", s.ID, err)
		}
		if start != nil {
			s.StartDate = start.UTC()
		}
		if end != nil {
			s.EndDate = end.UTC()
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// UpdateMesocycleStatus writes the lifecycle fields of m if the stored
// version still equals expectedVersion.
func (db *DB) UpdateMesocycleStatus(ctx context.Context, m *models.Mesocycle, expectedVersion int) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE mesocycles SET status = $1, version = $2, updated_at = $3, archived_at = $4
		 WHERE id = $5 AND version = $6`,
		m.Status.String(), m.Version, m.UpdatedAt, m.ArchivedAt, m.ID, expectedVersion)
	if err != nil {
		return classify(err, "updating mesocycle status", "mesocycle", m.ID)
	}
	if tag.RowsAffected() == 0 {
		return db.missingOrConflict(ctx, m.ID, expectedVersion)
	}
	return nil
}

// UpdateSet replaces the mutable fields of one set and bumps the
// mesocycle version, guarded by expectedVersion.
func (db *DB) UpdateSet(ctx context.Context, m *models.Mesocycle, set *models.Set, expectedVersion int) error {
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE mesocycles SET version = $1, updated_at = $2 WHERE id = $3 AND version = $4`,
			m.Version, m.UpdatedAt, m.ID, expectedVersion)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return db.missingOrConflict(ctx, m.ID, expectedVersion)
		}
		tag, err = tx.Exec(ctx,
			`UPDATE sets s SET reps_min = $1, reps_max = $2, expected_rir = $3, rest_seconds = $4,
			        load_kg = $5, is_amrap = $6, amrap_instruction = $7, amrap_notes = $8
			 FROM exercises e
			 JOIN days d ON d.id = e.day_id
			 JOIN microcycles mc ON mc.id = d.microcycle_id
			 WHERE s.id = $9 AND e.id = s.exercise_id AND mc.mesocycle_id = $10`,
			set.Reps.Min, set.Reps.Max, set.ExpectedRIR, set.RestSeconds,
			set.Load, set.IsAmrap, set.AmrapInstruction, set.AmrapNotes, set.ID, m.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return planerr.NotFound("set", set.ID)
		}
		return nil
	})
	return classify(err, "updating set", "set", set.ID)
}

func (db *DB) missingOrConflict(ctx context.Context, id uuid.UUID, expectedVersion int) error {
	var version int
	err := db.Pool.QueryRow(ctx, `SELECT version FROM mesocycles WHERE id = $1`, id).Scan(&version)
	if err != nil {
		return classify(err, "querying mesocycle version", "mesocycle", id)
	}
	return planerr.Conflict("mesocycle %s is at version %d, expected %d", id, version, expectedVersion)
}
