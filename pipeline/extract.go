package pipeline

import (
	"context"
	"fmt"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/source"
)

// Extract streams a legacy query into its staging tables and returns the
// number of legacy rows copied. Rows of a chain query get one key each from
// the query's key space, written to every level. Nothing is left in staging
// when the extraction fails, so it can be run again from the start.
func (e *Engine) Extract(ctx context.Context, q QueryDescriptor) (int64, error) {
	if len(q.Staging) == 0 {
		return 0, fmt.Errorf("%w: query %s has no staging table", ErrConfig, q.Name)
	}

	var keys *KeyAllocator
	switch {
	case q.KeySpace != "":
		keys = e.Keys[q.KeySpace]
		if keys == nil {
			return 0, fmt.Errorf("%w: query %s uses unknown key space %q", ErrConfig, q.Name, q.KeySpace)
		}
	case len(q.Staging) > 1:
		return 0, fmt.Errorf("%w: query %s fills %d chain levels without a key strategy", ErrConfig, q.Name, len(q.Staging))
	}

	fields := make([][]string, len(q.Staging))
	for i, table := range q.Staging {
		cols, err := e.tableColumns(ctx, table)
		if err != nil {
			return 0, err
		}
		fields[i] = cols
	}

	var total int64
	err := e.atomically(ctx, func(w *Engine) error {
		return source.Drain(ctx, e.Legacy, q.Query(e.Overrides[q.Name]), e.batchSize(), func(rows []source.Row) error {
			levels := make([][]format.Record, len(q.Staging))
			for _, row := range rows {
				var key *int64
				if keys != nil {
					k, err := keys.NextChainKey(ctx)
					if err != nil {
						return err
					}
					key = &k
				}
				for i := range q.Staging {
					levels[i] = append(levels[i], format.FormatLegacyRow(row, fields[i], key))
				}
			}

			for i, table := range q.Staging {
				if _, err := w.insertRecords(ctx, table, format.KeyColumn, levels[i]); err != nil {
					return err
				}
			}
			total += int64(len(rows))
			e.Log.Debug().Str("query", q.Name).Int64("rows", total).Msg("extracted batch")
			return nil
		})
	})
	if err != nil {
		if keys != nil {
			keys.Reseed()
		}
		return 0, fmt.Errorf("extract %s: %w", q.Name, err)
	}
	return total, nil
}
