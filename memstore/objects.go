package memstore

import (
	"context"
	"sync"

	"github.com/ridoystarlord/casemigrate/storage"
)

// Objects implements storage.Storage in memory.
type Objects struct {
	mu    sync.Mutex
	items map[string][]byte

	// Puts and Multipart list paths in upload order.
	Puts      []string
	Multipart []string
	// FailGet makes every Get return this error.
	FailGet error
	// FailPut makes uploads of the named path fail.
	FailPut map[string]error
}

func NewObjects() *Objects {
	return &Objects{items: map[string][]byte{}, FailPut: map[string]error{}}
}

func (o *Objects) Put(_ context.Context, path string, body []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.FailPut[path]; err != nil {
		return err
	}
	o.items[path] = append([]byte(nil), body...)
	o.Puts = append(o.Puts, path)
	return nil
}

func (o *Objects) PutMultipart(_ context.Context, path string, body []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.FailPut[path]; err != nil {
		return err
	}
	o.items[path] = append([]byte(nil), body...)
	o.Multipart = append(o.Multipart, path)
	return nil
}

func (o *Objects) Get(_ context.Context, path string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FailGet != nil {
		return nil, o.FailGet
	}
	data, ok := o.items[path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// PutCount returns how many single-shot puts targeted path.
func (o *Objects) PutCount(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	var n int
	for _, p := range o.Puts {
		if p == path {
			n++
		}
	}
	return n
}
