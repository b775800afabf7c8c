package pipeline

import (
	"context"
	"fmt"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/generator"
	"github.com/ridoystarlord/casemigrate/source"
)

// Load formats every staging row of st.Source and writes it to st.Target,
// keeping staging keys. The target sequence is reset after each batch. All
// batches commit together, so a failed load can be started over.
func (e *Engine) Load(ctx context.Context, st SourceTarget) (int64, error) {
	orderBy := st.OrderBy
	if orderBy == "" {
		orderBy = format.KeyColumn
	}
	q := source.Query{
		Name:  st.Name(),
		SQL:   generator.StagingSelectSQL(st.Source, orderBy, st.Mapping.Lookups),
		Table: st.Source,
	}

	var loaded map[int64]bool
	if st.SkipLoaded {
		var err error
		if loaded, err = e.keySet(ctx, st.Target, st.pk()); err != nil {
			return 0, fmt.Errorf("load %s: %w", st.Name(), err)
		}
	}

	var total int64
	err := e.atomically(ctx, func(w *Engine) error {
		return source.Drain(ctx, e.Store, q, e.batchSize(), func(rows []source.Row) error {
			recs := make([]format.Record, 0, len(rows))
			for _, row := range rows {
				if id, ok := row.Int64(st.pk()); ok && loaded[id] {
					continue
				}
				rec, err := format.FormatRecord(row, st.Mapping)
				if err != nil {
					return err
				}
				recs = append(recs, rec)
			}

			n, err := w.insertRecords(ctx, st.Target, st.pk(), recs)
			if err != nil {
				return err
			}
			total += n
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", st.Name(), err)
	}
	return total, nil
}
