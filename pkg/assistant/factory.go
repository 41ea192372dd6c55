package assistant

import (
	"context"
	"fmt"

	"github.com/kestrelab/memvault/pkg/config"
	"github.com/kestrelab/memvault/pkg/gate"
	"github.com/kestrelab/memvault/pkg/keyvault"
	"github.com/kestrelab/memvault/pkg/log"
	"github.com/kestrelab/memvault/pkg/mem/store"
	"github.com/kestrelab/memvault/pkg/mem/store/backends/boltdb"
	"github.com/kestrelab/memvault/pkg/mem/store/backends/memory"
	"github.com/kestrelab/memvault/pkg/mem/store/backends/sqlstore"
	"github.com/kestrelab/memvault/pkg/reasoning"
	mockreasoning "github.com/kestrelab/memvault/pkg/reasoning/adapters/mock"
	openaireasoning "github.com/kestrelab/memvault/pkg/reasoning/adapters/openai"
	"github.com/kestrelab/memvault/pkg/retrieval"
	"github.com/kestrelab/memvault/pkg/scripting"
)

// NewFromConfig builds a fully wired Assistant from configuration:
// key vault, persistence backend, encrypted store, retrieval engine,
// access gate, reasoning provider and (optionally) the Lua hook engine.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Assistant, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	vault := keyvault.New(keyvault.OSHostReader{}, keyvault.Config{
		Seed:       cfg.Vault.Seed,
		Iterations: cfg.Vault.Iterations,
	})

	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	memStore, err := store.Open(ctx, vault.Key(), backend)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	scripts, err := newScriptingEngine(cfg)
	if err != nil {
		memStore.Close()
		return nil, err
	}

	reasoningEngine, err := newReasoningEngine(cfg)
	if err != nil {
		if scripts != nil {
			scripts.Close()
		}
		memStore.Close()
		return nil, err
	}

	retrievalEngine := retrieval.NewEngine(memStore, scripts, retrieval.Config{
		TopK: cfg.Retrieval.TopK,
	})

	accessGate := gate.New(vault.Fingerprint(), gate.Config{
		LockoutThreshold:   cfg.Gate.LockoutThreshold,
		WildcardCredential: cfg.Gate.WildcardCredential,
	})

	log.Info("Assistant initialized",
		"backend", cfg.Store.Backend,
		"reasoning_provider", cfg.Reasoning.Provider,
		"scripting_enabled", cfg.Scripting.Enabled,
	)

	return New(accessGate, memStore, retrievalEngine, reasoningEngine, scripts), nil
}

// Fingerprint returns the live hardware fingerprint, for minting
// credentials with gate.IssueCredential.
func Fingerprint() string {
	return keyvault.Fingerprint(keyvault.OSHostReader{})
}

func newBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return memory.New(), nil
	case "sqlite", "postgres":
		backend, err := sqlstore.New(cfg.Store.SQL.Driver, cfg.Store.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Store.Backend, err)
		}
		return backend, nil
	case "boltdb":
		backend, err := boltdb.Open(cfg.Store.Bolt.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open boltdb backend: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

func newScriptingEngine(cfg *config.Config) (scripting.Engine, error) {
	if !cfg.Scripting.Enabled {
		return nil, nil
	}

	engine, err := scripting.NewLuaEngine(scripting.Config{
		EnableSandboxing: true,
		ScriptTimeoutMs:  cfg.Scripting.ScriptTimeoutMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scripting engine: %w", err)
	}

	for _, dir := range cfg.Scripting.Paths {
		if err := scripting.LoadAllScripts(engine, dir); err != nil {
			engine.Close()
			return nil, fmt.Errorf("failed to load scripts from %s: %w", dir, err)
		}
	}
	return engine, nil
}

func newReasoningEngine(cfg *config.Config) (reasoning.Engine, error) {
	switch cfg.Reasoning.Provider {
	case "", "mock":
		return mockreasoning.NewMockEngine(), nil
	case "openai":
		engine, err := openaireasoning.NewOpenAIAdapter(openaireasoning.Config{
			APIKey: cfg.Reasoning.OpenAI.APIKey,
			Model:  cfg.Reasoning.OpenAI.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unsupported reasoning provider: %s", cfg.Reasoning.Provider)
	}
}
