// Package memstore provides in-memory stand-ins for the legacy source, the
// target store and object storage. Key sequences follow Postgres: explicit
// keys never advance a sequence, only ResetSequence does.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/target"
)

type table struct {
	columns []string
	pk      string
	rows    []map[string]any
	seq     int64
}

var _ target.Transactor = (*Store)(nil)

// Store implements target.Store, target.Transactor and source.Source.
type Store struct {
	mu       sync.Mutex
	tables   map[string]*table
	scripted map[string]func(source.Query) []source.Row

	// Opened records every query passed to Open, in order.
	Opened []source.Query
	// FailInsert makes InsertBatch into the named table fail.
	FailInsert map[string]error
	// FailInsertAfter lets that many batches into the named table through
	// before FailInsert applies.
	FailInsertAfter map[string]int
	// Resets counts ResetSequence calls per table.
	Resets map[string]int
	// RolledBack counts InTx calls that discarded their writes.
	RolledBack int

	batches map[string]int
}

func New() *Store {
	return &Store{
		tables:     map[string]*table{},
		scripted:   map[string]func(source.Query) []source.Row{},
		FailInsert:      map[string]error{},
		FailInsertAfter: map[string]int{},
		Resets:          map[string]int{},
		batches:         map[string]int{},
	}
}

// CreateTable registers a table. A non-empty pk gets a sequence.
func (s *Store) CreateTable(name, pk string, columns ...string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pk != "" && !slices.Contains(columns, pk) {
		columns = append([]string{pk}, columns...)
	}
	s.tables[name] = &table{columns: columns, pk: pk}
	return s
}

// Script makes queries with the given name return rows.
func (s *Store) Script(queryName string, rows ...source.Row) *Store {
	return s.ScriptFunc(queryName, func(source.Query) []source.Row { return rows })
}

// ScriptFunc makes queries with the given name return fn(query), so results
// can depend on the bound arguments.
func (s *Store) ScriptFunc(queryName string, fn func(source.Query) []source.Row) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripted[queryName] = fn
	return s
}

// Rows returns a copy of the table's rows in insertion order.
func (s *Store) Rows(name string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]map[string]any, len(t.rows))
	for i, r := range t.rows {
		cp := make(map[string]any, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// Keys returns the primary keys of the table in insertion order.
func (s *Store) Keys(name string) []int64 {
	var keys []int64
	s.mu.Lock()
	t := s.tables[name]
	s.mu.Unlock()
	if t == nil {
		return nil
	}
	for _, r := range s.Rows(name) {
		n, _ := toInt64(r[t.pk])
		keys = append(keys, n)
	}
	return keys
}

// Seed inserts rows as-is, explicit keys included, without touching the sequence.
func (s *Store) Seed(name string, rows ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[name]
	for _, r := range rows {
		t.rows = append(t.rows, r)
	}
}

func (s *Store) Open(_ context.Context, q source.Query, pageSize int) (source.Cursor, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be at least 1, got %d", pageSize)
	}

	s.mu.Lock()
	s.Opened = append(s.Opened, q)
	fn, scripted := s.scripted[q.Name]
	s.mu.Unlock()

	if scripted {
		return &cursor{rows: fn(q), size: pageSize}, nil
	}

	if q.Table == "" {
		return nil, fmt.Errorf("execute query %s: no result scripted", q.Name)
	}

	s.mu.Lock()
	t, ok := s.tables[q.Table]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("execute query %s: relation %q does not exist", q.Name, q.Table)
	}

	var rows []source.Row
	for _, r := range s.Rows(q.Table) {
		vals := make([]any, len(t.columns))
		for i, c := range t.columns {
			vals[i] = r[c]
		}
		rows = append(rows, source.NewRow(t.columns, vals))
	}
	return &cursor{rows: rows, size: pageSize}, nil
}

func (s *Store) InsertBatch(_ context.Context, name string, fields []string, rows [][]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	calls := s.batches[name]
	s.batches[name]++
	if err := s.FailInsert[name]; err != nil && calls >= s.FailInsertAfter[name] {
		return 0, err
	}

	t, ok := s.tables[name]
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", name)
	}
	for _, f := range fields {
		if !slices.Contains(t.columns, f) {
			return 0, fmt.Errorf("column %q of relation %q does not exist", f, name)
		}
	}

	existing := map[int64]bool{}
	if t.pk != "" {
		for _, r := range t.rows {
			if n, ok := toInt64(r[t.pk]); ok {
				existing[n] = true
			}
		}
	}

	seq := t.seq
	batch := make([]map[string]any, 0, len(rows))
	for _, values := range rows {
		if len(values) != len(fields) {
			return 0, fmt.Errorf("insert into %s: %d values for %d fields", name, len(values), len(fields))
		}
		rec := make(map[string]any, len(t.columns))
		for _, c := range t.columns {
			rec[c] = nil
		}
		for i, f := range fields {
			rec[f] = values[i]
		}

		if t.pk != "" {
			key, explicit := toInt64(rec[t.pk])
			if !explicit {
				seq++
				key = seq
				rec[t.pk] = key
			}
			if existing[key] {
				return 0, fmt.Errorf("duplicate key value violates unique constraint \"%s_pkey\": (%s)=(%d)", name, t.pk, key)
			}
			existing[key] = true
		}
		batch = append(batch, rec)
	}

	t.seq = seq
	t.rows = append(t.rows, batch...)
	return int64(len(batch)), nil
}

// InTx snapshots every table's rows, runs fn against s and restores the
// snapshot when fn fails. Sequences are left where fn moved them, as setval
// is not rolled back by Postgres either.
func (s *Store) InTx(_ context.Context, fn func(target.Store) error) error {
	s.mu.Lock()
	saved := make(map[string][]map[string]any, len(s.tables))
	for name, t := range s.tables {
		saved[name] = slices.Clone(t.rows)
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		for name, rows := range saved {
			if t, ok := s.tables[name]; ok {
				t.rows = rows
			}
		}
		s.RolledBack++
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) ResetSequence(_ context.Context, name, pk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("relation %q does not exist", name)
	}
	s.Resets[name]++
	if t.pk != pk {
		return nil
	}
	var max int64
	for _, r := range t.rows {
		if n, ok := toInt64(r[pk]); ok && n > max {
			max = n
		}
	}
	t.seq = max
	return nil
}

func (s *Store) MaxKey(_ context.Context, name, column string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", name)
	}
	var max int64
	for _, r := range t.rows {
		if n, ok := toInt64(r[column]); ok && n > max {
			max = n
		}
	}
	return max, nil
}

func (s *Store) Columns(_ context.Context, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, nil
	}
	return slices.Clone(t.columns), nil
}

func (s *Store) TableExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[name]
	return ok, nil
}

func (s *Store) Count(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", name)
	}
	return int64(len(t.rows)), nil
}

type cursor struct {
	rows []source.Row
	size int
}

func (c *cursor) NextPage(context.Context) ([]source.Row, error) {
	if len(c.rows) == 0 {
		return nil, source.ErrEndOfStream
	}
	n := min(c.size, len(c.rows))
	page := c.rows[:n]
	c.rows = c.rows[n:]
	return page, nil
}

func (c *cursor) Close() {}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case *int64:
		if n == nil {
			return 0, false
		}
		return *n, true
	}
	return 0, false
}
