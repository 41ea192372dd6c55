package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides. The seed and wildcard credential are
// secrets and usually arrive through the environment rather than a file
// on disk.
const (
	envSeed     = "MEMVAULT_VAULT_SEED"
	envSQLDSN   = "MEMVAULT_SQL_DSN"
	envBoltPath = "MEMVAULT_BOLT_PATH"
	envWildcard = "MEMVAULT_WILDCARD_CREDENTIAL"
	envAPIKey   = "OPENAI_API_KEY"
)

// Default returns a configuration suitable for a single in-process
// session with no external services.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Backend: "memory"},
		Vault: VaultConfig{
			Iterations: 120000,
		},
		Gate: GateConfig{
			LockoutThreshold: 3,
		},
		Retrieval: RetrievalConfig{TopK: 5},
		Scripting: ScriptingConfig{
			Enabled:         false,
			ScriptTimeoutMs: 1000,
		},
		Reasoning: ReasoningConfig{Provider: "mock"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from a byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvironmentOverrides(config)

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func applyEnvironmentOverrides(config *Config) {
	if seed := os.Getenv(envSeed); seed != "" {
		config.Vault.Seed = seed
	}
	if dsn := os.Getenv(envSQLDSN); dsn != "" {
		config.Store.SQL.DSN = dsn
	}
	if path := os.Getenv(envBoltPath); path != "" {
		config.Store.Bolt.Path = path
	}
	if wildcard := os.Getenv(envWildcard); wildcard != "" {
		config.Gate.WildcardCredential = wildcard
	}
	if apiKey := os.Getenv(envAPIKey); apiKey != "" {
		config.Reasoning.OpenAI.APIKey = apiKey
	}
}

// validateConfig validates the configuration and applies defaults.
func validateConfig(config *Config) error {
	// Validate store configuration
	switch strings.ToLower(config.Store.Backend) {
	case "", "memory":
		config.Store.Backend = "memory"
	case "sqlite":
		if config.Store.SQL.DSN == "" {
			return fmt.Errorf("sql DSN is required for sqlite backend")
		}
		config.Store.SQL.Driver = "sqlite3"
	case "postgres":
		if config.Store.SQL.DSN == "" {
			return fmt.Errorf("sql DSN is required for postgres backend")
		}
		config.Store.SQL.Driver = "postgres"
	case "boltdb":
		if config.Store.Bolt.Path == "" {
			return fmt.Errorf("bolt path is required for boltdb backend")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", config.Store.Backend)
	}

	// Validate vault configuration
	if config.Vault.Seed == "" {
		return fmt.Errorf("vault seed is required (set %s)", envSeed)
	}
	if config.Vault.Iterations <= 0 {
		config.Vault.Iterations = 120000
	}

	// Validate gate configuration
	if config.Gate.LockoutThreshold <= 0 {
		config.Gate.LockoutThreshold = 3
	}

	// Validate retrieval configuration
	if config.Retrieval.TopK <= 0 {
		config.Retrieval.TopK = 5
	}

	// Validate scripting configuration
	if config.Scripting.ScriptTimeoutMs <= 0 {
		config.Scripting.ScriptTimeoutMs = 1000
	}

	// Validate reasoning configuration
	switch strings.ToLower(config.Reasoning.Provider) {
	case "", "mock":
		config.Reasoning.Provider = "mock"
	case "openai":
		// API key can arrive via environment, so it is not checked here.
		if config.Reasoning.OpenAI.Model == "" {
			config.Reasoning.OpenAI.Model = "gpt-4o-mini"
		}
		if config.Reasoning.OpenAI.MaxTokens <= 0 {
			config.Reasoning.OpenAI.MaxTokens = 1024
		}
		if config.Reasoning.OpenAI.Temperature <= 0 || config.Reasoning.OpenAI.Temperature > 1.0 {
			config.Reasoning.OpenAI.Temperature = 0.7
		}
	default:
		return fmt.Errorf("unsupported reasoning provider: %s", config.Reasoning.Provider)
	}

	return nil
}
