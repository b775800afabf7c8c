package pipeline

import (
	"context"
	"fmt"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/generator"
	"github.com/ridoystarlord/casemigrate/source"
)

type taskKey struct {
	process  int64
	taskType string
}

// DeriveTasks creates an active task for each entity row matched by a rule,
// unless the entity already has a task of that type.
func (e *Engine) DeriveTasks(ctx context.Context, t TaskDescriptor) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	key := orDefault(t.EntityKey, "id")

	existing := map[taskKey]bool{}
	err := source.Drain(ctx, e.Store, source.Query{
		Name:  "tasks " + t.Table,
		SQL:   generator.SelectAllSQL(t.Table, ""),
		Table: t.Table,
	}, e.batchSize(), func(rows []source.Row) error {
		for _, row := range rows {
			if id, ok := row.Int64("process_id"); ok {
				existing[taskKey{id, row.String("task_type")}] = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("tasks %s: %w", t.Name, err)
	}

	q := source.Query{
		Name:  "tasks " + t.Name,
		SQL:   generator.SelectAllSQL(t.Entity, key),
		Table: t.Entity,
	}

	var total int64
	err = source.Drain(ctx, e.Store, q, e.batchSize(), func(rows []source.Row) error {
		var recs []format.Record
		for _, row := range rows {
			id, ok := row.Int64(key)
			if !ok {
				continue
			}
			for _, rule := range t.Rules {
				k := taskKey{id, rule.TaskType()}
				if existing[k] || !rule.matches(row) {
					continue
				}
				existing[k] = true
				recs = append(recs, format.Record{
					"process_id": id,
					"task_type":  rule.TaskType(),
					"is_active":  true,
					"created":    e.Now().UTC(),
				})
			}
		}

		n, err := e.insertRecords(ctx, t.Table, format.KeyColumn, recs)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("tasks %s: %w", t.Name, err)
	}
	return total, nil
}
