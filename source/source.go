// Package source defines the read side of the migration: named queries,
// ordered rows with case-insensitive column lookup and a paged cursor.
package source

import (
	"context"
	"errors"
	"maps"
	"strings"
)

// ErrEndOfStream is returned by Cursor.NextPage once the result set is drained.
var ErrEndOfStream = errors.New("end of stream")

// Query identifies one unit of read work. SQL may reference named parameters
// as @name; Args supplies their values.
type Query struct {
	Name string
	SQL  string
	Args map[string]any
	// Table is set when the query reads every row of a single table.
	Table string
}

// WithArgs returns a copy of q with extra merged over the existing args.
func (q Query) WithArgs(extra map[string]any) Query {
	args := make(map[string]any, len(q.Args)+len(extra))
	maps.Copy(args, q.Args)
	maps.Copy(args, extra)
	q.Args = args
	return q
}

// Cursor yields fixed-size pages until ErrEndOfStream.
type Cursor interface {
	NextPage(ctx context.Context) ([]Row, error)
	Close()
}

// Source opens cursors over query results.
type Source interface {
	Open(ctx context.Context, q Query, pageSize int) (Cursor, error)
}

// Drain reads every page of q and calls fn for each one. An empty result set
// calls fn zero times.
func Drain(ctx context.Context, src Source, q Query, pageSize int, fn func([]Row) error) error {
	cur, err := src.Open(ctx, q, pageSize)
	if err != nil {
		return err
	}
	defer cur.Close()

	for {
		page, err := cur.NextPage(ctx)
		if errors.Is(err, ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
	}
}

// Row is an ordered column to value mapping. Column names are stored lower
// case so lookups are case-insensitive.
type Row struct {
	cols []string
	vals []any
}

func NewRow(cols []string, vals []any) Row {
	lc := make([]string, len(cols))
	for i, c := range cols {
		lc[i] = strings.ToLower(c)
	}
	v := make([]any, len(cols))
	copy(v, vals)
	return Row{cols: lc, vals: v}
}

// RowOf builds a row from alternating column, value pairs.
func RowOf(pairs ...any) Row {
	var cols []string
	var vals []any
	for i := 0; i+1 < len(pairs); i += 2 {
		cols = append(cols, pairs[i].(string))
		vals = append(vals, pairs[i+1])
	}
	return NewRow(cols, vals)
}

func (r Row) Columns() []string {
	return r.cols
}

func (r Row) Values() []any {
	return r.vals
}

func (r Row) Len() int {
	return len(r.cols)
}

func (r Row) Get(col string) (any, bool) {
	col = strings.ToLower(col)
	for i, c := range r.cols {
		if c == col {
			return r.vals[i], true
		}
	}
	return nil, false
}

// String returns the value of col as a string, or "" when it is missing,
// nil or not a string-like value.
func (r Row) String(col string) string {
	v, ok := r.Get(col)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

// Int64 returns the value of col as an int64.
func (r Row) Int64(col string) (int64, bool) {
	v, ok := r.Get(col)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case int16:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Map returns a copy of the row as a plain map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.cols))
	for i, c := range r.cols {
		m[c] = r.vals[i]
	}
	return m
}
