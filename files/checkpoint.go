// Package files copies legacy binary content into object storage. Each named
// query streams (path, blob) rows; progress is checkpointed per query so an
// interrupted run resumes after the last uploaded item.
package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/ridoystarlord/casemigrate/storage"
)

// TimeLayout is the layout of checkpoint timestamps and limit-by values.
const TimeLayout = "2006-01-02 15:04:05"

// Checkpoint records how far one query got.
type Checkpoint struct {
	QueryName     string `json:"query_name"`
	FilePrefix    string `json:"file_prefix"`
	ToBeProcessed int64  `json:"number_of_files_to_be_processed"`
	Processed     int64  `json:"number_of_files_processed"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at,omitempty"`
	// LimitBy names the parameter holding the last processed value.
	LimitBy string `json:"limit_by,omitempty"`
	// Parameters are the bound query parameters, with the limit-by value
	// advanced to the last uploaded item.
	Parameters map[string]any `json:"parameters"`
}

// LastValue returns the limit-by value of the last uploaded item.
func (c Checkpoint) LastValue() (any, bool) {
	if c.LimitBy == "" {
		return nil, false
	}
	v, ok := c.Parameters[c.LimitBy]
	return v, ok
}

// CheckpointKey is the object path of a query's checkpoint.
func CheckpointKey(queryName string) string {
	return queryName + "-last-run.json"
}

// ReadCheckpoint loads the checkpoint of queryName. A missing checkpoint is
// reported as found=false with a nil error; any other storage error is
// returned.
func ReadCheckpoint(ctx context.Context, s storage.Storage, queryName string) (cp Checkpoint, found bool, err error) {
	data, err := s.Get(ctx, CheckpointKey(queryName))
	if errors.Is(err, storage.ErrNotFound) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint %s: %w", queryName, err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("decode checkpoint %s: %w", queryName, err)
	}
	return cp, true, nil
}

// WriteCheckpoint stores cp, replacing any earlier checkpoint of the query.
func WriteCheckpoint(ctx context.Context, s storage.Storage, cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", cp.QueryName, err)
	}
	if err := s.Put(ctx, CheckpointKey(cp.QueryName), data); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", cp.QueryName, err)
	}
	return nil
}

// ShouldCheckpoint reports whether a checkpoint is due after the processed-th
// item: every batchSize items and on the last one, never before the first.
func ShouldCheckpoint(processed, total, batchSize int64) bool {
	if processed <= 0 {
		return false
	}
	if processed == total {
		return true
	}
	return batchSize > 0 && processed%batchSize == 0
}

// resumeParameters merges the checkpoint's limit-by value over params.
func resumeParameters(params map[string]any, limitBy string, cp Checkpoint, found bool) map[string]any {
	out := maps.Clone(params)
	if out == nil {
		out = map[string]any{}
	}
	if !found || limitBy == "" {
		return out
	}
	if v, ok := cp.Parameters[limitBy]; ok && v != nil {
		out[limitBy] = v
	}
	return out
}
