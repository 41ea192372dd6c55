// Package assistant is the facade in front of the secure memory core.
// Every externally reachable operation passes the access gate before it
// touches the store or the cipher.
package assistant

import (
	"context"
	"fmt"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/gate"
	"github.com/kestrelab/memvault/pkg/log"
	"github.com/kestrelab/memvault/pkg/mem/store"
	"github.com/kestrelab/memvault/pkg/reasoning"
	"github.com/kestrelab/memvault/pkg/retrieval"
	"github.com/kestrelab/memvault/pkg/scripting"
)

// Assistant wires the gate, store, retrieval engine and generation
// provider together behind the external interface.
type Assistant struct {
	gate      *gate.Gate
	store     *store.MemoryStore
	retrieval *retrieval.Engine
	reasoning reasoning.Engine
	scripts   scripting.Engine
}

// New creates an Assistant from already-constructed components. The
// scripting engine may be nil; the reasoning engine may be nil when the
// caller never uses Query.
func New(
	accessGate *gate.Gate,
	memStore *store.MemoryStore,
	retrievalEngine *retrieval.Engine,
	reasoningEngine reasoning.Engine,
	scripts scripting.Engine,
) *Assistant {
	return &Assistant{
		gate:      accessGate,
		store:     memStore,
		retrieval: retrievalEngine,
		reasoning: reasoningEngine,
		scripts:   scripts,
	}
}

// Unlock validates a credential against the device fingerprint. It
// returns errors.ErrAccessSuspended once the lockout threshold has been
// reached.
func (a *Assistant) Unlock(ctx context.Context, credential string) (bool, error) {
	ok, err := a.gate.Validate(credential)
	if err != nil {
		return false, err
	}
	if ok {
		log.InfoContext(ctx, "Assistant unlocked")
	}
	return ok, nil
}

// StoreInteraction encrypts and appends one interaction. Requires the
// gate to be unlocked.
func (a *Assistant) StoreInteraction(ctx context.Context, input, response string) (int64, error) {
	if err := a.gate.Check(); err != nil {
		return 0, err
	}
	return a.store.Store(ctx, input, response)
}

// BuildContext returns the ranked context for a query. Requires the
// gate to be unlocked.
func (a *Assistant) BuildContext(ctx context.Context, query string, topK int) (string, error) {
	if err := a.gate.Check(); err != nil {
		return "", err
	}
	return a.retrieval.BuildContext(ctx, query, topK)
}

// SubmitFeedback reweights the most recent interaction. The sign must
// be "positive" or "negative". Requires the gate to be unlocked.
func (a *Assistant) SubmitFeedback(ctx context.Context, sign string) error {
	if err := a.gate.Check(); err != nil {
		return err
	}
	switch sign {
	case string(store.FeedbackPositive):
		return a.store.ApplyFeedback(ctx, store.FeedbackPositive)
	case string(store.FeedbackNegative):
		return a.store.ApplyFeedback(ctx, store.FeedbackNegative)
	default:
		return errors.Wrap(errors.ErrInvalidInput, "feedback sign %q", sign)
	}
}

// Query answers an input using stored context, then records the new
// interaction. Requires the gate to be unlocked and a reasoning engine.
func (a *Assistant) Query(ctx context.Context, input string, opts ...reasoning.Option) (string, error) {
	if err := a.gate.Check(); err != nil {
		return "", err
	}
	if a.reasoning == nil {
		return "", errors.Wrap(errors.ErrInvalidInput, "no reasoning engine configured")
	}

	contextStr, err := a.retrieval.BuildContext(ctx, input, 0)
	if err != nil {
		return "", err
	}

	prompt := input
	if contextStr != "" {
		prompt = fmt.Sprintf("Previous conversation:\n%s\nUser: %s\nAssistant:", contextStr, input)
	}

	response, err := a.reasoning.Generate(ctx, prompt, opts...)
	if err != nil {
		return "", errors.Wrap(err, "generation failed")
	}

	if _, err := a.store.Store(ctx, input, response); err != nil {
		return "", errors.Wrap(err, "failed to record interaction")
	}
	return response, nil
}

// GateState reports the current gate state.
func (a *Assistant) GateState() gate.State {
	return a.gate.State()
}

// Close releases the store backend and the scripting engine.
func (a *Assistant) Close() error {
	if a.scripts != nil {
		if err := a.scripts.Close(); err != nil {
			log.Warn("Failed to close scripting engine", "error", err)
		}
	}
	return a.store.Close()
}
