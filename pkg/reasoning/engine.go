// Package reasoning defines the opaque text-generation capability the
// assistant consumes. The core never depends on a concrete provider;
// adapters live under adapters/.
package reasoning

import (
	"context"
)

// Option is a function that configures a generation request.
type Option func(*Options)

// Options holds configuration for a generation request.
type Options struct {
	// Temperature controls randomness in generation (0.0-1.0)
	Temperature float64

	// MaxTokens limits the length of the generated response
	MaxTokens int

	// Model specifies which model variant to use
	Model string
}

// DefaultOptions returns default generation options.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		MaxTokens:   1024,
		Model:       "", // Empty means use the adapter's default
	}
}

// WithTemperature sets the temperature option.
func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the max tokens option.
func WithMaxTokens(tokens int) Option {
	return func(o *Options) {
		o.MaxTokens = tokens
	}
}

// WithModel sets the model option.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Engine is the interface for text generation providers.
type Engine interface {
	// Generate sends a prompt to the provider and returns the generated text.
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
}
