package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/mem/store"
	"github.com/kestrelab/memvault/pkg/seal"
)

func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memvault.bolt.db")
	backend, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend, path
}

func testRecord(id int64, tokens ...string) store.StoredRecord {
	return store.StoredRecord{
		ID:         id,
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Second),
		Input:      seal.Blob([]byte{0x01, byte(id)}),
		Response:   seal.Blob([]byte{0x02, byte(id)}),
		Importance: 1.0,
		Tokens:     tokens,
	}
}

func TestAppendAndLoad(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Append(ctx, testRecord(1, "where", "keys")))
	require.NoError(t, backend.Append(ctx, testRecord(2, "wifi", "password", "wifi")))

	records, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)
	assert.Equal(t, testRecord(1).CreatedAt, records[0].CreatedAt)
	assert.Equal(t, seal.Blob([]byte{0x01, 0x01}), records[0].Input)
	assert.Equal(t, seal.Blob([]byte{0x02, 0x01}), records[0].Response)
	assert.Equal(t, []string{"where", "keys"}, records[0].Tokens)
	assert.Equal(t, []string{"wifi", "password", "wifi"}, records[1].Tokens)
}

func TestLoadPreservesIDOrder(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	// Id 256 exercises the multi-byte key encoding: lexicographic byte
	// order must still equal numeric order.
	for _, id := range []int64{256, 1, 42} {
		require.NoError(t, backend.Append(ctx, testRecord(id, "t")))
	}

	records, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(42), records[1].ID)
	assert.Equal(t, int64(256), records[2].ID)
}

func TestSetImportancePersists(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Append(ctx, testRecord(1, "t")))
	require.NoError(t, backend.SetImportance(ctx, 1, 1.5))

	records, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 1.5, records[0].Importance, 1e-9)
}

func TestSetImportanceUnknownRecord(t *testing.T) {
	backend, _ := newTestBackend(t)

	err := backend.SetImportance(context.Background(), 99, 1.5)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestEmptyTokenListStillIndexed(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	rec := testRecord(1)
	rec.Tokens = nil
	require.NoError(t, backend.Append(ctx, rec))

	records, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Tokens)
}

func TestMissingIndexEntryIsConsistencyError(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Append(ctx, testRecord(1, "t")))

	// Simulate a corrupted store by removing the index entry out of band.
	err := backend.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Delete(recordKey(1))
	})
	require.NoError(t, err)

	_, err = backend.Load(ctx)
	assert.ErrorIs(t, err, errors.ErrStoreConsistency)
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memvault.bolt.db")

	backend, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, backend.Append(context.Background(), testRecord(1, "persistent")))
	require.NoError(t, backend.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"persistent"}, records[0].Tokens)
}
