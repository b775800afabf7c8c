package pipeline

import (
	"context"
	"fmt"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/generator"
	"github.com/ridoystarlord/casemigrate/source"
)

// Relate copies join-shape rows into the through table of r. Rows missing
// either key are skipped. The through rows commit together.
func (e *Engine) Relate(ctx context.Context, r Relationship) (int64, error) {
	through := r.Through()
	exists, err := e.Store.TableExists(ctx, through)
	if err != nil {
		return 0, fmt.Errorf("check through table %s: %w", through, err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: relation %s has no through table %s", ErrConfig, r.Name(), through)
	}

	ownerCol, relatedCol := r.ThroughColumns()
	q := source.Query{
		Name:  "m2m " + r.Name(),
		SQL:   generator.StagingSelectSQL(r.Source, "", r.Lookups),
		Table: r.Source,
	}

	var total int64
	err = e.atomically(ctx, func(w *Engine) error {
		return source.Drain(ctx, e.Store, q, e.batchSize(), func(rows []source.Row) error {
			recs := make([]format.Record, 0, len(rows))
			for _, row := range rows {
				owner, ok := row.Int64(r.SourceOwner)
				if !ok {
					continue
				}
				related, ok := row.Int64(r.SourceRelated)
				if !ok {
					continue
				}
				recs = append(recs, format.Record{ownerCol: owner, relatedCol: related})
			}

			n, err := w.insertRecords(ctx, through, "", recs)
			if err != nil {
				return err
			}
			total += n
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("relate %s: %w", r.Name(), err)
	}
	return total, nil
}
