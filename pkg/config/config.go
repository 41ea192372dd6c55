package config

// Config represents the top-level configuration for the MemVault library.
type Config struct {
	// Store configures the encrypted memory store
	Store StoreConfig `yaml:"store"`

	// Vault configures key derivation
	Vault VaultConfig `yaml:"vault"`

	// Gate configures access control
	Gate GateConfig `yaml:"gate"`

	// Retrieval configures contextual retrieval
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Scripting configures the Lua hook engine
	Scripting ScriptingConfig `yaml:"scripting"`

	// Reasoning configures the text generation provider
	Reasoning ReasoningConfig `yaml:"reasoning"`

	// Logging configures the logging behavior
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the memory store persistence backend.
type StoreConfig struct {
	// Backend specifies the persistence backend
	// ("memory", "sqlite", "postgres", "boltdb")
	Backend string `yaml:"backend"`

	// SQL configures SQL-based persistence
	SQL SQLConfig `yaml:"sql"`

	// Bolt configures BoltDB persistence
	Bolt BoltConfig `yaml:"bolt"`
}

// SQLConfig configures SQL-based persistence.
type SQLConfig struct {
	// Driver is the SQL driver ("sqlite3", "postgres")
	Driver string `yaml:"driver"`

	// DSN is the data source name (connection string)
	DSN string `yaml:"dsn"`
}

// BoltConfig configures BoltDB persistence.
type BoltConfig struct {
	// Path is the bolt database file path
	Path string `yaml:"path"`
}

// VaultConfig configures key derivation.
type VaultConfig struct {
	// Seed is the static application seed mixed into key derivation.
	// Required; an empty seed would bind the key to the fingerprint alone.
	Seed string `yaml:"seed"`

	// Iterations is the PBKDF2 iteration count (minimum 100000)
	Iterations int `yaml:"iterations"`
}

// GateConfig configures access control.
type GateConfig struct {
	// LockoutThreshold is the consecutive-failure count before suspension
	LockoutThreshold int `yaml:"lockout_threshold"`

	// WildcardCredential, when set, is accepted regardless of fingerprint
	WildcardCredential string `yaml:"wildcard_credential"`
}

// RetrievalConfig configures contextual retrieval.
type RetrievalConfig struct {
	// TopK is the default number of context pairs
	TopK int `yaml:"top_k"`
}

// ScriptingConfig configures the Lua hook engine.
type ScriptingConfig struct {
	// Enabled toggles the scripting engine
	Enabled bool `yaml:"enabled"`

	// Paths is a list of directories containing Lua hook scripts
	Paths []string `yaml:"paths"`

	// ScriptTimeoutMs bounds hook execution time in milliseconds
	ScriptTimeoutMs int `yaml:"script_timeout_ms"`
}

// ReasoningConfig configures the text generation provider.
type ReasoningConfig struct {
	// Provider is the generation provider ("mock", "openai")
	Provider string `yaml:"provider"`

	// OpenAI configures OpenAI integration
	OpenAI OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig configures OpenAI integration.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key
	APIKey string `yaml:"api_key"`

	// Model is the model to use for chat completions
	Model string `yaml:"model"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls randomness in generation (0.0-1.0)
	Temperature float64 `yaml:"temperature"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`

	// Format is the output format ("text", "json")
	Format string `yaml:"format"`
}
