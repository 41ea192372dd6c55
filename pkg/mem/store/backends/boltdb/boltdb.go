// Package boltdb persists the interaction log in a BoltDB file.
// Records and lexical index entries live in separate buckets; a single
// bolt transaction covers both writes, which gives Append its atomicity.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/log"
	"github.com/kestrelab/memvault/pkg/mem/store"
	"github.com/kestrelab/memvault/pkg/seal"
)

var (
	recordsBucket = []byte("records")
	indexBucket   = []byte("lexical_index")
)

// Backend implements store.Backend over a bolt database.
type Backend struct {
	db *bolt.DB
}

// storedPayload is the JSON form of a record without its tokens; tokens
// live in the index bucket under the same key.
type storedPayload struct {
	CreatedAt  int64   `json:"created_at"`
	Input      []byte  `json:"input"`
	Response   []byte  `json:"response"`
	Importance float64 `json:"importance"`
}

// New wraps an open bolt database and creates the required buckets.
func New(db *bolt.DB) (*Backend, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize buckets")
	}

	log.Debug("BoltDB memory backend ready", "db_path", db.Path())
	return &Backend{db: db}, nil
}

// Open opens (or creates) a bolt database file at path.
func Open(path string) (*Backend, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(errors.ErrStoreUnavailable, "failed to open bolt db at %s", path)
	}
	return New(db)
}

// Name identifies the backend in logs.
func (b *Backend) Name() string { return "boltdb" }

// Append writes the record payload and its index entry in one
// transaction. The index entry is written even when the token list is
// empty, so a payload without one is a consistency violation.
func (b *Backend) Append(ctx context.Context, rec store.StoredRecord) error {
	payload, err := json.Marshal(storedPayload{
		CreatedAt:  rec.CreatedAt.UnixNano(),
		Input:      rec.Input,
		Response:   rec.Response,
		Importance: rec.Importance,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal record %d", rec.ID)
	}

	tokens := rec.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	indexEntry, err := json.Marshal(tokens)
	if err != nil {
		return errors.Wrap(err, "failed to marshal index entry for record %d", rec.ID)
	}

	key := recordKey(rec.ID)
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(recordsBucket).Put(key, payload); err != nil {
			return err
		}
		return tx.Bucket(indexBucket).Put(key, indexEntry)
	})
}

// SetImportance implements store.Backend.
func (b *Backend) SetImportance(ctx context.Context, id int64, importance float64) error {
	key := recordKey(id)
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		data := bucket.Get(key)
		if data == nil {
			return errors.Wrap(errors.ErrNotFound, "record %d", id)
		}

		var payload storedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return errors.Wrap(err, "failed to unmarshal record %d", id)
		}
		payload.Importance = importance

		updated, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to marshal record %d", id)
		}
		return bucket.Put(key, updated)
	})
}

// Load implements store.Backend. Bolt cursors iterate keys in byte
// order, and the big-endian key encoding preserves id order.
func (b *Backend) Load(ctx context.Context) ([]store.StoredRecord, error) {
	var records []store.StoredRecord

	err := b.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(indexBucket)
		cursor := tx.Bucket(recordsBucket).Cursor()

		for key, data := cursor.First(); key != nil; key, data = cursor.Next() {
			id := int64(binary.BigEndian.Uint64(key))

			var payload storedPayload
			if err := json.Unmarshal(data, &payload); err != nil {
				return errors.Wrap(err, "failed to unmarshal record %d", id)
			}

			indexEntry := index.Get(key)
			if indexEntry == nil {
				return errors.Wrap(errors.ErrStoreConsistency,
					"record %d has no lexical index entry", id)
			}
			var tokens []string
			if err := json.Unmarshal(indexEntry, &tokens); err != nil {
				return errors.Wrap(err, "failed to unmarshal index entry for record %d", id)
			}

			records = append(records, store.StoredRecord{
				ID:         id,
				CreatedAt:  time.Unix(0, payload.CreatedAt).UTC(),
				Input:      seal.Blob(payload.Input),
				Response:   seal.Blob(payload.Response),
				Importance: payload.Importance,
				Tokens:     tokens,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close implements store.Backend.
func (b *Backend) Close() error {
	return b.db.Close()
}

func recordKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
