package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ridoystarlord/casemigrate/target"
)

// KeyAllocator hands out the shared primary keys of an inheritance chain.
// It is seeded once from the highest key present in any of its tables and
// counts up in memory from there, so keys never collide with existing rows
// or with keys handed out earlier in the run.
type KeyAllocator struct {
	store  target.Store
	column string
	tables []string

	mu     sync.Mutex
	seeded bool
	last   int64
}

// NewKeyAllocator creates an allocator over the key column of tables,
// typically the chain's staging and target base tables. Missing tables are
// ignored when seeding.
func NewKeyAllocator(store target.Store, column string, tables ...string) *KeyAllocator {
	return &KeyAllocator{store: store, column: column, tables: tables}
}

// NextChainKey returns the next unused key.
func (a *KeyAllocator) NextChainKey(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.seeded {
		for _, table := range a.tables {
			exists, err := a.store.TableExists(ctx, table)
			if err != nil {
				return 0, fmt.Errorf("check key table %s: %w", table, err)
			}
			if !exists {
				continue
			}
			top, err := a.store.MaxKey(ctx, table, a.column)
			if err != nil {
				return 0, fmt.Errorf("read max key of %s: %w", table, err)
			}
			a.last = max(a.last, top)
		}
		a.seeded = true
	}

	a.last++
	return a.last, nil
}

// Reseed makes the next NextChainKey read the tables again. Used after the
// rows of handed-out keys were rolled back, so those keys are reused.
func (a *KeyAllocator) Reseed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seeded = false
	a.last = 0
}
