// Package pipeline runs the migration stages: extraction from the legacy
// source into staging, XML normalization, transform and load into the target
// tables, many-to-many population, backfill and task derivation.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/target"
)

const DefaultBatchSize = 5000

// ProcessKeySpace is the key space shared by every process-backed entity.
// XML parsers that create processes allocate from it.
const ProcessKeySpace = "process"

// Engine runs single descriptors. Staging tables live in the target store.
type Engine struct {
	Legacy source.Source
	Store  target.Store
	Keys   map[string]*KeyAllocator
	// Overrides replace query parameters, by query name.
	Overrides map[string]map[string]any
	BatchSize int
	Log       zerolog.Logger
	Now       func() time.Time

	columns map[string][]string
}

func NewEngine(legacy source.Source, store target.Store, log zerolog.Logger) *Engine {
	return &Engine{
		Legacy:    legacy,
		Store:     store,
		Keys:      map[string]*KeyAllocator{},
		Overrides: map[string]map[string]any{},
		BatchSize: DefaultBatchSize,
		Log:       log,
		Now:       time.Now,
		columns:   map[string][]string{},
	}
}

func (e *Engine) batchSize() int {
	if e.BatchSize < 1 {
		return DefaultBatchSize
	}
	return e.BatchSize
}

func (e *Engine) tableColumns(ctx context.Context, table string) ([]string, error) {
	if cols, ok := e.columns[table]; ok {
		return cols, nil
	}
	cols, err := e.Store.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist or has no columns", table)
	}
	e.columns[table] = cols
	return cols, nil
}

// atomically runs fn with an engine whose writes go through one
// transaction when the store supports it, so a failed step leaves nothing
// behind and can be run again from the start.
func (e *Engine) atomically(ctx context.Context, fn func(w *Engine) error) error {
	tx, ok := e.Store.(target.Transactor)
	if !ok {
		return fn(e)
	}
	return tx.InTx(ctx, func(store target.Store) error {
		w := *e
		w.Store = store
		return fn(&w)
	})
}

// insertRecords writes records into table. Only keys that are columns of
// table are written, in column order. A run of consecutive records with the
// same key set goes out as one batch, so absent fields keep their column
// defaults and rows land in the order given. When a batch carries explicit
// values for pk the table's sequence is moved past them.
func (e *Engine) insertRecords(ctx context.Context, table, pk string, recs []format.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	cols, err := e.tableColumns(ctx, table)
	if err != nil {
		return 0, err
	}

	type run struct {
		fields []string
		rows   [][]any
	}
	var runs []*run

	for _, rec := range recs {
		var fields []string
		for _, c := range cols {
			if _, ok := rec[c]; ok {
				fields = append(fields, c)
			}
		}
		if len(fields) == 0 {
			continue
		}

		if len(runs) == 0 || !slices.Equal(runs[len(runs)-1].fields, fields) {
			runs = append(runs, &run{fields: fields})
		}
		r := runs[len(runs)-1]
		row := make([]any, len(fields))
		for i, f := range fields {
			row[i] = rec[f]
		}
		r.rows = append(r.rows, row)
	}

	var total int64
	for _, r := range runs {
		n, err := e.Store.InsertBatch(ctx, table, r.fields, r.rows)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		total += n

		if pk != "" && slices.Contains(r.fields, pk) {
			if err := e.Store.ResetSequence(ctx, table, pk); err != nil {
				return total, fmt.Errorf("reset sequence of %s: %w", table, err)
			}
		}
	}
	return total, nil
}
