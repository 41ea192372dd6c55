// Package scripting embeds a sandboxed Lua engine. Retrieval exposes
// hook points (before_query, after_rank) that operators can script
// without rebuilding the binary.
package scripting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// ErrFunctionNotFound is returned when a requested Lua function has not
// been loaded.
var ErrFunctionNotFound = errors.New("lua function not found")

// Engine is the interface for the Lua scripting engine.
type Engine interface {
	// LoadScript loads a Lua script with the given name and content.
	LoadScript(name string, content []byte) error

	// LoadScriptFile loads a Lua script from a file path.
	LoadScriptFile(path string) error

	// LoadScriptDir loads all Lua scripts from a directory.
	LoadScriptDir(dir string) error

	// ExecuteFunction calls a Lua function with the given arguments.
	// The function should be previously loaded via LoadScript or LoadScriptFile.
	ExecuteFunction(ctx context.Context, funcName string, args ...interface{}) (interface{}, error)

	// Close releases resources associated with the engine.
	Close() error
}

// Config contains configuration options for the scripting engine.
type Config struct {
	// EnableSandboxing restricts access to potentially dangerous Lua modules like os and io
	EnableSandboxing bool `yaml:"enable_sandboxing"`

	// ScriptTimeoutMs sets a maximum execution time for scripts in milliseconds
	ScriptTimeoutMs int `yaml:"script_timeout_ms"`
}

// DefaultConfig returns the default configuration for the scripting engine.
func DefaultConfig() Config {
	return Config{
		EnableSandboxing: true,
		ScriptTimeoutMs:  1000,
	}
}

// LoadAllScripts loads every .lua file in dir into the engine.
func LoadAllScripts(engine Engine, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := engine.LoadScriptFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
