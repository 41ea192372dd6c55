// Package memory provides an in-process backend for a single session.
// Nothing survives process exit; it is the default for development and
// the workhorse for tests.
package memory

import (
	"context"
	"sync"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/mem/store"
)

// Backend keeps records in a slice, in insert (ascending id) order.
type Backend struct {
	mu      sync.Mutex
	records []store.StoredRecord

	// failNextAppend makes the next Append fail. Tests use it to verify
	// that a failed write leaves no partial record behind.
	failNextAppend bool
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{}
}

// Name identifies the backend in logs.
func (b *Backend) Name() string { return "memory" }

// Append implements store.Backend. The single slice append is atomic by
// construction: the record and its tokens live in one value.
func (b *Backend) Append(ctx context.Context, rec store.StoredRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failNextAppend {
		b.failNextAppend = false
		return errors.Wrap(errors.ErrStoreUnavailable, "injected append failure")
	}

	b.records = append(b.records, cloneRecord(rec))
	return nil
}

// SetImportance implements store.Backend.
func (b *Backend) SetImportance(ctx context.Context, id int64, importance float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.records {
		if b.records[i].ID == id {
			b.records[i].Importance = importance
			return nil
		}
	}
	return errors.Wrap(errors.ErrNotFound, "record %d", id)
}

// Load implements store.Backend.
func (b *Backend) Load(ctx context.Context) ([]store.StoredRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]store.StoredRecord, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

// Close implements store.Backend.
func (b *Backend) Close() error { return nil }

// FailNextAppend arms a one-shot append failure.
func (b *Backend) FailNextAppend() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNextAppend = true
}

// cloneRecord copies a record so callers cannot alias backend state.
func cloneRecord(rec store.StoredRecord) store.StoredRecord {
	out := rec
	out.Input = append([]byte(nil), rec.Input...)
	out.Response = append([]byte(nil), rec.Response...)
	out.Tokens = append([]string(nil), rec.Tokens...)
	return out
}
