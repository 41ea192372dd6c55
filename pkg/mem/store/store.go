// Package store implements the encrypted interaction log.
//
// Payloads are sealed before they reach the persistence backend and only
// decrypted on the way out to a caller; the backend never sees plaintext
// input or responses. The lexical index, by contrast, is stored in the
// clear: full-text search over ciphertext is a known hard problem, so
// token-level leakage is accepted and documented rather than hidden.
package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/log"
	"github.com/kestrelab/memvault/pkg/seal"
)

// MemoryStore is the interaction log shared by all callers. A single
// coarse mutex covers every operation: a writer blocks all other readers
// and writers for the duration of its call.
type MemoryStore struct {
	mu      sync.Mutex
	key     []byte
	backend Backend
	clock   func() time.Time

	// In-memory working set, hydrated from the backend at open.
	records []StoredRecord
	nextID  int64

	// Lexical index state for TF-IDF scoring.
	termCounts map[int64]map[string]int
	docFreq    map[string]int
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock substitutes the timestamp source. Tests use it to make
// creation times deterministic.
func WithClock(clock func() time.Time) Option {
	return func(m *MemoryStore) {
		m.clock = clock
	}
}

// Open creates a MemoryStore over the given backend, hydrating records
// and the lexical index from whatever the backend already holds.
func Open(ctx context.Context, key []byte, backend Backend, opts ...Option) (*MemoryStore, error) {
	m := &MemoryStore{
		key:        key,
		backend:    backend,
		clock:      time.Now,
		termCounts: make(map[int64]map[string]int),
		docFreq:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}

	records, err := backend.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hydrate memory store")
	}
	for _, rec := range records {
		m.records = append(m.records, rec)
		m.indexRecord(rec)
		if rec.ID > m.nextID {
			m.nextID = rec.ID
		}
	}

	log.DebugContext(ctx, "Memory store opened",
		"records", len(m.records),
		"backend", backendName(backend),
	)
	return m, nil
}

// Store encrypts an interaction and appends it to the log. The record
// and its lexical index entry are inserted atomically: the backend write
// happens first, and in-memory state is only mutated once it succeeds,
// so a failure never leaves a partial record.
func (m *MemoryStore) Store(ctx context.Context, input, response string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	encInput, err := seal.Encrypt(m.key, []byte(input))
	if err != nil {
		return 0, errors.Wrap(err, "failed to encrypt input")
	}
	encResponse, err := seal.Encrypt(m.key, []byte(response))
	if err != nil {
		return 0, errors.Wrap(err, "failed to encrypt response")
	}

	rec := StoredRecord{
		ID:         m.nextID + 1,
		CreatedAt:  m.clock().UTC(),
		Input:      encInput,
		Response:   encResponse,
		Importance: DefaultImportance,
		// Both sides of the interaction are indexed; queries tend to
		// match either the user's phrasing or the assistant's.
		Tokens: Tokenize(input + " " + response),
	}

	if err := m.backend.Append(ctx, rec); err != nil {
		return 0, errors.Wrap(err, "failed to persist record")
	}

	m.nextID = rec.ID
	m.records = append(m.records, rec)
	m.indexRecord(rec)

	log.DebugContext(ctx, "Stored interaction",
		"record_id", rec.ID,
		"input_length", len(input),
		"response_length", len(response),
		"tokens", len(rec.Tokens),
	)
	return rec.ID, nil
}

// ApplyFeedback reweights the importance of the most recently stored
// record: ×1.5 for positive, ×0.7 for negative. On an empty store it is
// a no-op, not an error.
func (m *MemoryStore) ApplyFeedback(ctx context.Context, sign FeedbackSign) error {
	var factor float64
	switch sign {
	case FeedbackPositive:
		factor = positiveFactor
	case FeedbackNegative:
		factor = negativeFactor
	default:
		return errors.Wrap(errors.ErrInvalidInput, "unknown feedback sign %q", sign)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) == 0 {
		log.DebugContext(ctx, "Feedback on empty store ignored", "sign", sign)
		return nil
	}

	last := &m.records[len(m.records)-1]
	updated := last.Importance * factor
	if err := m.backend.SetImportance(ctx, last.ID, updated); err != nil {
		return errors.Wrap(err, "failed to persist importance for record %d", last.ID)
	}
	last.Importance = updated

	log.DebugContext(ctx, "Applied feedback",
		"record_id", last.ID,
		"sign", sign,
		"importance", updated,
	)
	return nil
}

// FetchRecent returns up to limit decrypted records ordered by creation
// time descending. A decryption failure aborts the whole read.
func (m *MemoryStore) FetchRecent(ctx context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}

	var out []Record
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec, err := m.decrypt(m.records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// FetchByLexicalMatch scores every record against the query with TF-IDF,
// scales by importance, and returns up to limit decrypted matches in
// descending score order. Score ties break more-recent-first so results
// are reproducible for an identical snapshot.
func (m *MemoryStore) FetchByLexicalMatch(ctx context.Context, query string, limit int) ([]ScoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	type scored struct {
		rec   StoredRecord
		score float64
	}
	total := float64(len(m.records))
	var candidates []scored
	for _, rec := range m.records {
		counts := m.termCounts[rec.ID]
		score := 0.0
		for _, term := range dedupe(queryTokens) {
			tf := counts[term]
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + total/float64(1+m.docFreq[term]))
			score += float64(tf) * idf
		}
		if score > 0 {
			candidates = append(candidates, scored{rec: rec, score: score * rec.Importance})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if !candidates[i].rec.CreatedAt.Equal(candidates[j].rec.CreatedAt) {
			return candidates[i].rec.CreatedAt.After(candidates[j].rec.CreatedAt)
		}
		return candidates[i].rec.ID > candidates[j].rec.ID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]ScoredRecord, 0, len(candidates))
	for _, c := range candidates {
		rec, err := m.decrypt(c.rec)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredRecord{Record: rec, LexicalScore: c.score})
	}
	return out, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Close releases the underlying backend.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Close()
}

// decrypt opens both payloads of a stored record. Errors propagate
// unmodified so callers can distinguish tampering via
// errors.ErrAuthentication.
func (m *MemoryStore) decrypt(rec StoredRecord) (Record, error) {
	input, err := seal.Decrypt(m.key, rec.Input)
	if err != nil {
		return Record{}, errors.Wrap(err, "record %d input", rec.ID)
	}
	response, err := seal.Decrypt(m.key, rec.Response)
	if err != nil {
		return Record{}, errors.Wrap(err, "record %d response", rec.ID)
	}
	return Record{
		ID:         rec.ID,
		CreatedAt:  rec.CreatedAt,
		Input:      string(input),
		Response:   string(response),
		Importance: rec.Importance,
	}, nil
}

// indexRecord folds a record's tokens into the lexical index.
func (m *MemoryStore) indexRecord(rec StoredRecord) {
	counts := termFrequencies(rec.Tokens)
	m.termCounts[rec.ID] = counts
	for term := range counts {
		m.docFreq[term]++
	}
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func backendName(b Backend) string {
	type namer interface{ Name() string }
	if n, ok := b.(namer); ok {
		return n.Name()
	}
	return "unknown"
}
