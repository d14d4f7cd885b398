// Package filestore holds the small pieces of state the spec keeps outside
// the SQL store: push subscriptions, device tokens, the calibration
// document, and push provider credentials. Each document is small, rewritten
// in full on every mutation — the same immediate-whole-file-write choice the
// teacher's saveConfigNow makes for its own config file, generalized to a
// handful of named documents instead of one.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
)

// Document is a thread-safe JSON document backed by a single file, holding a
// value of type T. All reads/writes go through Load/Save under a single
// mutex — no partial writes are ever visible.
type Document[T any] struct {
	mu   sync.RWMutex
	path string
	val  T
}

// Open loads path into a Document, creating it with zero-value contents if
// it doesn't exist yet.
func Open[T any](path string) (*Document[T], error) {
	d := &Document[T]{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := d.persist(); err != nil {
				return nil, err
			}
			return d, nil
		}
		return nil, apperr.Wrap(apperr.KindStorageFatal, "reading "+path, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFatal, "parsing "+path, err)
	}
	d.val = v
	return d, nil
}

// Get returns a copy of the current value.
func (d *Document[T]) Get() T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.val
}

// Mutate runs fn against the current value, persists the result, and on
// success updates the in-memory value. A non-nil error from fn (or from the
// write) leaves the in-memory value unchanged.
func (d *Document[T]) Mutate(fn func(T) (T, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := fn(d.val)
	if err != nil {
		return err
	}
	prev := d.val
	d.val = next
	if err := d.persist(); err != nil {
		d.val = prev
		return err
	}
	return nil
}

func (d *Document[T]) persist() error {
	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Wrap(apperr.KindStorageFatal, "creating directory for "+d.path, err)
		}
	}
	data, err := json.MarshalIndent(d.val, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindStorageFatal, "serializing "+d.path, err)
	}
	if err := os.WriteFile(d.path, data, 0o600); err != nil {
		return apperr.Wrap(apperr.KindStorageFatal, "writing "+d.path, err)
	}
	return nil
}
