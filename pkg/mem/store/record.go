package store

import (
	"time"

	"github.com/kestrelab/memvault/pkg/seal"
)

// StoredRecord is the at-rest form of an interaction: payloads are
// encrypted blobs, while the lexical tokens derived from the plaintext
// are kept in the clear so the record stays searchable. Token-level
// leakage is an accepted, documented trade-off of that design.
type StoredRecord struct {
	// ID is a monotonically increasing, unique identifier.
	ID int64

	// CreatedAt is the creation timestamp. Immutable after insert.
	CreatedAt time.Time

	// Input is the encrypted user input.
	Input seal.Blob

	// Response is the encrypted assistant response.
	Response seal.Blob

	// Importance is a mutable relevance weight, default 1.0. Feedback
	// events reweight it multiplicatively.
	Importance float64

	// Tokens is the plaintext lexical index entry for this record.
	// Duplicates are retained; term frequency matters for ranking.
	Tokens []string
}

// Record is the decrypted view of a stored interaction handed to readers.
type Record struct {
	ID         int64
	CreatedAt  time.Time
	Input      string
	Response   string
	Importance float64
}

// ScoredRecord pairs a decrypted record with its lexical match score.
type ScoredRecord struct {
	Record

	// LexicalScore is the TF-IDF relevance of the record for the query,
	// scaled by the record's importance. Higher is more relevant.
	LexicalScore float64
}

// FeedbackSign labels a feedback event on the most recent interaction.
type FeedbackSign string

// Feedback signs
const (
	FeedbackPositive FeedbackSign = "positive"
	FeedbackNegative FeedbackSign = "negative"
)

// Multiplicative importance factors applied by feedback events.
const (
	positiveFactor = 1.5
	negativeFactor = 0.7
)

// DefaultImportance is the importance assigned to a new record.
const DefaultImportance = 1.0
