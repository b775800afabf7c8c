package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cursorName = "casemigrate_cursor"

// Postgres reads the legacy replica through a server-side cursor opened in a
// read-only transaction, fetching one page per round trip.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Open(ctx context.Context, q Query, pageSize int) (Cursor, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be at least 1, got %d", pageSize)
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction for %s: %w", q.Name, err)
	}

	// DECLARE takes no bind parameters, so named args are interpolated client side.
	args := []any{pgx.QueryExecModeSimpleProtocol}
	if len(q.Args) > 0 {
		args = append(args, pgx.NamedArgs(q.Args))
	}
	if _, err := tx.Exec(ctx, "DECLARE "+cursorName+" NO SCROLL CURSOR FOR "+q.SQL, args...); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("execute query %s: %w", q.Name, err)
	}

	return &pgCursor{name: q.Name, tx: tx, size: pageSize}, nil
}

type pgCursor struct {
	name string
	tx   pgx.Tx
	size int
	done bool
}

func (c *pgCursor) NextPage(ctx context.Context) ([]Row, error) {
	if c.done {
		return nil, ErrEndOfStream
	}

	rows, err := c.tx.Query(ctx, fmt.Sprintf("FETCH FORWARD %d FROM %s", c.size, cursorName))
	if err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", c.name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	page := make([]Row, 0, c.size)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row from %s: %w", c.name, err)
		}
		page = append(page, NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows from %s: %w", c.name, err)
	}

	if len(page) < c.size {
		c.done = true
	}
	if len(page) == 0 {
		return nil, ErrEndOfStream
	}
	return page, nil
}

func (c *pgCursor) Close() {
	_ = c.tx.Rollback(context.Background())
}
