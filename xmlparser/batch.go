package xmlparser

import (
	"context"
	"errors"

	"github.com/ridoystarlord/casemigrate/format"
)

// KeySource hands out keys in the shared process key space.
type KeySource interface {
	NextChainKey(ctx context.Context) (int64, error)
}

var errNoKeySource = errors.New("parser allocates keys but no key source is configured")

// Batch collects records per destination table, keeping first-seen table
// order so dependent tables are written after the tables they reference.
type Batch struct {
	ctx     context.Context
	keys    KeySource
	order   []string
	records map[string][]format.Record
}

func NewBatch(ctx context.Context, keys KeySource) *Batch {
	return &Batch{ctx: ctx, keys: keys, records: map[string][]format.Record{}}
}

func (b *Batch) Add(table string, rec format.Record) {
	if _, seen := b.records[table]; !seen {
		b.order = append(b.order, table)
	}
	b.records[table] = append(b.records[table], rec)
}

// allocError marks key allocation failures, which are not document errors.
type allocError struct{ err error }

func (e *allocError) Error() string { return e.err.Error() }
func (e *allocError) Unwrap() error { return e.err }

// NextKey allocates a key from the batch's key source.
func (b *Batch) NextKey() (int64, error) {
	if b.keys == nil {
		return 0, &allocError{errNoKeySource}
	}
	key, err := b.keys.NextChainKey(b.ctx)
	if err != nil {
		return 0, &allocError{err}
	}
	return key, nil
}

func (b *Batch) Tables() []string {
	return b.order
}

func (b *Batch) Records(table string) []format.Record {
	return b.records[table]
}

func (b *Batch) Len() int {
	var n int
	for _, recs := range b.records {
		n += len(recs)
	}
	return n
}

// Merge appends every record of other to b.
func (b *Batch) Merge(other *Batch) {
	for _, table := range other.order {
		for _, rec := range other.records[table] {
			b.Add(table, rec)
		}
	}
}

// Reset empties the batch, keeping its key source.
func (b *Batch) Reset() {
	b.order = nil
	b.records = map[string][]format.Record{}
}
