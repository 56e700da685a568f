package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// classify turns driver errors into engine errors where the cause is the
// caller's input. op names the failed operation for everything else.
func classify(err error, op, entity string, id any) error {
	if err == nil {
		return nil
	}
	if pe, ok := planerr.As(err); ok && pe.Err == nil {
		return pe
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return planerr.NotFound(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ForeignKeyViolation:
			e := planerr.NotFound("referenced record", pgErr.ConstraintName)
			e.Err = err
			return e
		case pgerrcode.UniqueViolation:
			e := planerr.Conflict("%s %v already exists", entity, id)
			e.Err = err
			return e
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
			e := planerr.Validation(pgErr.ConstraintName, "%s", pgErr.Message)
			e.Err = err
			return e
		case pgerrcode.SerializationFailure:
			e := planerr.Conflict("%s %v changed concurrently", entity, id)
			e.Err = err
			return e
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
