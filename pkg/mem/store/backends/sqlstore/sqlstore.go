// Package sqlstore persists the interaction log in a SQL database.
// Both sqlite3 and postgres are supported through sqlx; schema changes
// are applied with embedded golang-migrate migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/log"
	"github.com/kestrelab/memvault/pkg/mem/store"
	"github.com/kestrelab/memvault/pkg/seal"
)

// Backend implements store.Backend over a SQL database.
type Backend struct {
	db     *sqlx.DB
	driver string
}

// New connects to the database, runs pending migrations, and returns a
// ready backend. Supported drivers: "sqlite3", "postgres".
func New(driver, dsn string) (*Backend, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStoreUnavailable, "failed to connect (%s)", driver)
	}

	if err := runMigrations(db, driver); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	log.Debug("SQL memory backend ready", "driver", driver)
	return &Backend{db: db, driver: driver}, nil
}

// Name identifies the backend in logs.
func (b *Backend) Name() string { return b.driver }

// Append inserts the record and its lexical index rows in one
// transaction, so a mid-write failure rolls both inserts back.
func (b *Backend) Append(ctx context.Context, rec store.StoredRecord) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO memory_records (id, created_at, input, response, importance)
		 VALUES (?, ?, ?, ?, ?)`),
		rec.ID, rec.CreatedAt.UnixNano(), []byte(rec.Input), []byte(rec.Response), rec.Importance,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert record %d", rec.ID)
	}

	for token, count := range countTokens(rec.Tokens) {
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO lexical_tokens (record_id, token, freq) VALUES (?, ?, ?)`),
			rec.ID, token, count,
		)
		if err != nil {
			return errors.Wrap(err, "failed to index record %d", rec.ID)
		}
	}

	return tx.Commit()
}

// SetImportance implements store.Backend.
func (b *Backend) SetImportance(ctx context.Context, id int64, importance float64) error {
	res, err := b.db.ExecContext(ctx, b.db.Rebind(
		`UPDATE memory_records SET importance = ? WHERE id = ?`),
		importance, id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update importance for record %d", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return errors.Wrap(errors.ErrNotFound, "record %d", id)
	}
	return nil
}

// Load reads every record plus its index rows in ascending id order.
// Orphaned index rows indicate a violated write transaction and surface
// as errors.ErrStoreConsistency.
func (b *Backend) Load(ctx context.Context) ([]store.StoredRecord, error) {
	rows, err := b.db.QueryxContext(ctx,
		`SELECT id, created_at, input, response, importance
		 FROM memory_records ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load records")
	}
	defer rows.Close()

	var records []store.StoredRecord
	byID := make(map[int64]int)
	for rows.Next() {
		var (
			rec       store.StoredRecord
			createdNs int64
			input     []byte
			response  []byte
		)
		if err := rows.Scan(&rec.ID, &createdNs, &input, &response, &rec.Importance); err != nil {
			return nil, errors.Wrap(err, "failed to scan record")
		}
		rec.CreatedAt = time.Unix(0, createdNs).UTC()
		rec.Input = seal.Blob(input)
		rec.Response = seal.Blob(response)
		byID[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating records")
	}

	tokenRows, err := b.db.QueryxContext(ctx,
		`SELECT record_id, token, freq FROM lexical_tokens ORDER BY record_id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load lexical index")
	}
	defer tokenRows.Close()

	for tokenRows.Next() {
		var (
			recordID int64
			token    string
			freq     int
		)
		if err := tokenRows.Scan(&recordID, &token, &freq); err != nil {
			return nil, errors.Wrap(err, "failed to scan token row")
		}
		idx, ok := byID[recordID]
		if !ok {
			return nil, errors.Wrap(errors.ErrStoreConsistency,
				"index entry for missing record %d", recordID)
		}
		for i := 0; i < freq; i++ {
			records[idx].Tokens = append(records[idx].Tokens, token)
		}
	}
	if err := tokenRows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating token rows")
	}

	return records, nil
}

// Close implements store.Backend.
func (b *Backend) Close() error {
	return b.db.Close()
}

// DB exposes the underlying handle for integration tests.
func (b *Backend) DB() *sql.DB {
	return b.db.DB
}

func countTokens(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}
