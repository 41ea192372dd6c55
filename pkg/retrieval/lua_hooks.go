package retrieval

import (
	"context"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/log"
	"github.com/kestrelab/memvault/pkg/scripting"
)

const (
	// beforeQueryFuncName is the Lua function consulted before candidates
	// are fetched. It may rewrite the query text or the candidate count.
	beforeQueryFuncName = "before_query"

	// afterRankFuncName is the Lua function consulted after the merged
	// candidate list is built. It may reorder or drop candidates.
	afterRankFuncName = "after_rank"
)

// callBeforeQueryHook invokes the before_query hook if loaded. Hook
// failures are logged and ignored; retrieval never fails because of a
// misbehaving script.
func (e *Engine) callBeforeQueryHook(ctx context.Context, query string, topK int) (string, int) {
	if e.scripts == nil {
		return query, topK
	}

	result, err := e.scripts.ExecuteFunction(ctx, beforeQueryFuncName, map[string]interface{}{
		"query": query,
		"top_k": topK,
	})
	if err != nil {
		if !errors.Is(err, scripting.ErrFunctionNotFound) {
			log.WarnContext(ctx, "Error calling Lua hook",
				"hook", beforeQueryFuncName, "error", err)
		}
		return query, topK
	}

	resultMap, ok := result.(map[string]interface{})
	if !ok {
		return query, topK
	}
	if text, ok := resultMap["query"].(string); ok && text != "" {
		query = text
	}
	if k, ok := resultMap["top_k"].(float64); ok && int(k) > 0 {
		topK = int(k)
	}
	return query, topK
}

// callAfterRankHook invokes the after_rank hook if loaded. The hook
// receives the candidate list as tables of {id, score, lexical} and
// returns the ids to keep, in order. Unknown ids are ignored; a result
// that is not an id list leaves the ranking untouched.
func (e *Engine) callAfterRankHook(ctx context.Context, entries []contextEntry) []contextEntry {
	if e.scripts == nil || len(entries) == 0 {
		return entries
	}

	candidates := make([]interface{}, 0, len(entries))
	byID := make(map[int64]contextEntry, len(entries))
	for _, entry := range entries {
		byID[entry.record.ID] = entry
		candidates = append(candidates, map[string]interface{}{
			"id":      entry.record.ID,
			"score":   entry.score,
			"lexical": entry.lexical,
		})
	}

	result, err := e.scripts.ExecuteFunction(ctx, afterRankFuncName, candidates)
	if err != nil {
		if !errors.Is(err, scripting.ErrFunctionNotFound) {
			log.WarnContext(ctx, "Error calling Lua hook",
				"hook", afterRankFuncName, "error", err)
		}
		return entries
	}

	ids, ok := result.([]interface{})
	if !ok {
		return entries
	}

	reordered := make([]contextEntry, 0, len(entries))
	taken := make(map[int64]bool, len(entries))
	for _, raw := range ids {
		id, ok := raw.(float64)
		if !ok {
			return entries
		}
		entry, exists := byID[int64(id)]
		if !exists || taken[int64(id)] {
			continue
		}
		taken[int64(id)] = true
		reordered = append(reordered, entry)
	}
	return reordered
}
