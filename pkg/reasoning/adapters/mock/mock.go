// Package mock provides a canned-response reasoning engine for tests
// and offline development.
package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kestrelab/memvault/pkg/reasoning"
)

// Call records one Generate invocation.
type Call struct {
	// Prompt is the full prompt passed to Generate.
	Prompt string
}

// MockEngine implements the reasoning.Engine interface with canned responses.
type MockEngine struct {
	mu sync.RWMutex

	// cannedResponses maps prompt substrings to predetermined responses
	cannedResponses map[string]string

	// defaultResponse is returned when no canned response matches
	defaultResponse string

	// shouldError makes every call fail
	shouldError bool

	// callHistory records all Generate calls
	callHistory []Call
}

// MockOption is a function that configures a MockEngine.
type MockOption func(*MockEngine)

// WithDefaultResponse sets the default response for the mock engine.
func WithDefaultResponse(resp string) MockOption {
	return func(m *MockEngine) {
		m.defaultResponse = resp
	}
}

// WithShouldError configures whether the mock engine returns errors.
func WithShouldError(shouldErr bool) MockOption {
	return func(m *MockEngine) {
		m.shouldError = shouldErr
	}
}

// NewMockEngine creates a new MockEngine with the given options.
func NewMockEngine(opts ...MockOption) *MockEngine {
	m := &MockEngine{
		cannedResponses: make(map[string]string),
		defaultResponse: "mock response",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddResponse registers a canned response for prompts containing the
// given substring.
func (m *MockEngine) AddResponse(promptContains, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cannedResponses[promptContains] = response
}

// Generate implements the reasoning.Engine interface.
func (m *MockEngine) Generate(ctx context.Context, prompt string, opts ...reasoning.Option) (string, error) {
	m.mu.Lock()
	m.callHistory = append(m.callHistory, Call{Prompt: prompt})
	shouldError := m.shouldError
	m.mu.Unlock()

	if shouldError {
		return "", errors.New("mock engine error")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for substring, response := range m.cannedResponses {
		if strings.Contains(prompt, substring) {
			return response, nil
		}
	}
	return m.defaultResponse, nil
}

// Calls returns a copy of the recorded call history.
func (m *MockEngine) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Call(nil), m.callHistory...)
}
