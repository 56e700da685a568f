package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// maxParams keeps one statement under PostgreSQL's bind parameter limit.
const maxParams = 65535

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// valuesClause returns "($1,$2),($3,$4)..." for rows of width columns.
func valuesClause(rows, width int) string {
	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j := 0; j < width; j++ {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", i*width+j+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// batchInsert inserts n rows into table with one multi-VALUES statement per
// chunk. row(i) returns the column values of row i in column order.
func batchInsert(ctx context.Context, ex execer, table string, columns []string, n int, row func(i int) []any) error {
	if n == 0 {
		return nil
	}
	width := len(columns)
	chunk := maxParams / width
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		args := make([]any, 0, (end-start)*width)
		for i := start; i < end; i++ {
			args = append(args, row(i)...)
		}
		if _, err := ex.Exec(ctx, prefix+valuesClause(end-start, width), args...); err != nil {
			return fmt.Errorf("inserting %s: %w", table, err)
		}
	}
	return nil
}
