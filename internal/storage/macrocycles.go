package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// GetMacrocycle loads a macrocycle with its mesocycle trees in position order.
func (db *DB) GetMacrocycle(ctx context.Context, id uuid.UUID) (*models.Macrocycle, error) {
	var m models.Macrocycle
	err := db.Pool.QueryRow(ctx,
		`SELECT id, student_id, name, objective, start_date, end_date, created_at
		 FROM macrocycles WHERE id = $1`, id).
		Scan(&m.ID, &m.StudentID, &m.Name, &m.Objective, &m.StartDate, &m.EndDate, &m.CreatedAt)
	if err != nil {
		return nil, classify(err, "querying macrocycle", "macrocycle", id)
	}
	m.StartDate, m.EndDate = m.StartDate.UTC(), m.EndDate.UTC()

	rows, err := db.Pool.Query(ctx,
		`SELECT id FROM mesocycles WHERE macrocycle_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying macrocycle mesocycles: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scanning macrocycle mesocycles: %w", err)
	}

	m.Mesocycles = make([]models.Mesocycle, 0, len(ids))
	for _, mid := range ids {
		meso, err := db.GetMesocycle(ctx, mid)
		if err != nil {
			return nil, err
		}
		m.Mesocycles = append(m.Mesocycles, *meso)
	}
	return &m, nil
}

const (
	lockMacrocycleSQL = `SELECT id FROM macrocycles WHERE id = $1 AND student_id = $2 FOR UPDATE`

	// The end date only grows; a stale caller must not shrink it.
	extendMacrocycleSQL = `UPDATE macrocycles SET end_date = GREATEST(end_date, $1) WHERE id = $2`
)

// SaveAssignment writes an assignment in one transaction: the macrocycle is
// inserted when created, otherwise it is locked and its end date extended,
// and the cloned mesocycle tree is appended to it.
func (db *DB) SaveAssignment(ctx context.Context, macro *models.Macrocycle, created bool, meso *models.Mesocycle) error {
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		if created {
			_, err := tx.Exec(ctx,
				`INSERT INTO macrocycles (id, student_id, name, objective, start_date, end_date, created_at)
				 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				macro.ID, macro.StudentID, macro.Name, macro.Objective,
				macro.StartDate, macro.EndDate, macro.CreatedAt)
			if err != nil {
				return fmt.Errorf("inserting macrocycle: %w", err)
			}
		} else {
			// Row lock serializes appends: the position subquery and the end
			// date both depend on what earlier assignments wrote.
			var locked uuid.UUID
			err := tx.QueryRow(ctx, lockMacrocycleSQL, macro.ID, macro.StudentID).Scan(&locked)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return planerr.NotFound("macrocycle", macro.ID)
				}
				return fmt.Errorf("locking macrocycle: %w", err)
			}
			if _, err := tx.Exec(ctx, extendMacrocycleSQL, macro.EndDate, macro.ID); err != nil {
				return fmt.Errorf("updating macrocycle: %w", err)
			}
		}
		return insertMesocycleTree(ctx, tx, meso)
	})
	return classify(err, "saving assignment", "mesocycle", meso.ID)
}
