package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/generator"
	"github.com/ridoystarlord/casemigrate/source"
)

// Backfill creates one companion record for every entity whose status has a
// bucket and which has no companion yet.
func (e *Engine) Backfill(ctx context.Context, b BackfillDescriptor) (int64, error) {
	key := orDefault(b.EntityKey, "id")
	statusCol := orDefault(b.StatusColumn, "status")
	companionStatus := orDefault(b.CompanionStatus, "status")

	existing, err := e.keySet(ctx, b.Companion, b.CompanionOwner)
	if err != nil {
		return 0, fmt.Errorf("backfill %s: %w", b.Name, err)
	}

	q := source.Query{
		Name:  "backfill " + b.Name,
		SQL:   generator.SelectAllSQL(b.Entity, key),
		Table: b.Entity,
	}

	var total int64
	err = source.Drain(ctx, e.Store, q, e.batchSize(), func(rows []source.Row) error {
		var recs []format.Record
		for _, row := range rows {
			status, ok := b.Buckets[strings.ToLower(row.String(statusCol))]
			if !ok {
				continue
			}
			id, ok := row.Int64(key)
			if !ok || existing[id] {
				continue
			}
			existing[id] = true

			rec := format.Record{}
			for k, v := range b.Defaults {
				rec[k] = v
			}
			rec[b.CompanionOwner] = id
			rec[companionStatus] = status
			recs = append(recs, rec)
		}

		n, err := e.insertRecords(ctx, b.Companion, format.KeyColumn, recs)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("backfill %s: %w", b.Name, err)
	}
	return total, nil
}

// keySet reads every value of column in table.
func (e *Engine) keySet(ctx context.Context, table, column string) (map[int64]bool, error) {
	set := map[int64]bool{}
	q := source.Query{
		Name:  "keys " + table + "." + column,
		SQL:   fmt.Sprintf("SELECT %s FROM %s", generator.Quote(column), generator.Quote(table)),
		Table: table,
	}
	err := source.Drain(ctx, e.Store, q, e.batchSize(), func(rows []source.Row) error {
		for _, row := range rows {
			if id, ok := row.Int64(column); ok {
				set[id] = true
			}
		}
		return nil
	})
	return set, err
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
