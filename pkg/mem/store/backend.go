package store

import "context"

// Backend is the persistence layer beneath a MemoryStore. The store is
// the sole writer; backends only need to keep the record and its lexical
// index entry durable and atomic.
//
// Append must be all-or-nothing: either the record and its index entry
// both exist afterwards, or neither does. Load must return records in
// ascending id order and surface errors.ErrStoreConsistency when a
// record and its index entry disagree.
type Backend interface {
	// Append durably inserts a record together with its lexical index entry.
	Append(ctx context.Context, rec StoredRecord) error

	// SetImportance updates the importance weight of an existing record.
	SetImportance(ctx context.Context, id int64, importance float64) error

	// Load returns all records in ascending id order. Called once when a
	// MemoryStore opens, to hydrate its in-memory state.
	Load(ctx context.Context) ([]StoredRecord, error)

	// Close releases backend resources.
	Close() error
}
