// Package retrieval selects and renders the context handed to the
// language model. Candidates come from two directions, lexical match
// and recency; lexical wins on overlap because it is query-specific.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/log"
	"github.com/kestrelab/memvault/pkg/mem/store"
	"github.com/kestrelab/memvault/pkg/scripting"
)

// DefaultTopK is the number of record pairs rendered when the caller
// does not ask for a specific count.
const DefaultTopK = 5

// Config contains configuration options for the retrieval engine.
type Config struct {
	// TopK is the default number of context pairs.
	TopK int `yaml:"top_k"`
}

// DefaultConfig returns the default retrieval configuration.
func DefaultConfig() Config {
	return Config{TopK: DefaultTopK}
}

// Engine ranks stored records for a query. It only ever reads the
// snapshot the store hands it; records are never mutated here.
type Engine struct {
	store   *store.MemoryStore
	scripts scripting.Engine
	config  Config
}

// contextEntry is one surviving candidate before rendering.
type contextEntry struct {
	record  store.Record
	score   float64
	lexical bool
}

// NewEngine creates a retrieval engine. The scripting engine is
// optional; pass nil to disable hooks.
func NewEngine(memStore *store.MemoryStore, scripts scripting.Engine, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Engine{
		store:   memStore,
		scripts: scripts,
		config:  cfg,
	}
}

// BuildContext returns at most topK query/response pairs relevant to the
// query, rendered in relevance-then-recency order. An empty store yields
// an empty context, not an error. Given an identical store snapshot and
// query the output is reproducible.
func (e *Engine) BuildContext(ctx context.Context, query string, topK int) (string, error) {
	if topK <= 0 {
		topK = e.config.TopK
	}

	query, topK = e.callBeforeQueryHook(ctx, query, topK)

	lexical, err := e.store.FetchByLexicalMatch(ctx, query, topK)
	if err != nil {
		return "", errors.Wrap(err, "lexical candidates")
	}
	recent, err := e.store.FetchRecent(ctx, topK)
	if err != nil {
		return "", errors.Wrap(err, "recency candidates")
	}

	// Merge: lexical candidates first (already score-ordered), then
	// recency candidates that did not match, newest first. Duplicates
	// keep the lexical entry.
	seen := make(map[int64]bool, len(lexical))
	entries := make([]contextEntry, 0, topK)
	for _, match := range lexical {
		seen[match.ID] = true
		entries = append(entries, contextEntry{
			record:  match.Record,
			score:   match.LexicalScore,
			lexical: true,
		})
	}
	for _, rec := range recent {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		entries = append(entries, contextEntry{record: rec})
	}
	if len(entries) > topK {
		entries = entries[:topK]
	}

	entries = e.callAfterRankHook(ctx, entries)

	if len(entries) == 0 {
		return "", nil
	}

	log.DebugContext(ctx, "Built retrieval context",
		"query_length", len(query),
		"top_k", topK,
		"pairs", len(entries),
	)
	return render(entries), nil
}

// render formats the surviving records as alternating query/response
// pairs.
func render(entries []contextEntry) string {
	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "User: %s\n", entry.record.Input)
		fmt.Fprintf(&b, "Assistant: %s\n", entry.record.Response)
	}
	return b.String()
}
