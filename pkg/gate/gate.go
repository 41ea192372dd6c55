// Package gate enforces access control in front of the memory store.
//
// The gate is a three-state machine: it starts Locked, a credential
// whose embedded fingerprint matches the live hardware fingerprint
// unlocks it, and too many consecutive failures suspend it for the rest
// of the process. Suspension is deliberately coarse: there is no
// in-process recovery, only a restart.
package gate

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/log"
)

// State is the gate's position in its lifecycle.
type State int

// Gate states
const (
	// Locked is the initial state; every gated operation is denied.
	Locked State = iota

	// Unlocked admits gated operations.
	Unlocked

	// Suspended is terminal: the lockout threshold was reached.
	Suspended
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// DefaultLockoutThreshold is the number of consecutive failed
// validations before suspension.
const DefaultLockoutThreshold = 3

// Config contains configuration options for the gate.
type Config struct {
	// LockoutThreshold is the consecutive-failure count that triggers
	// suspension. Zero or negative falls back to the default.
	LockoutThreshold int `yaml:"lockout_threshold"`

	// WildcardCredential, when non-empty, is accepted verbatim
	// regardless of the embedded fingerprint. Intended for recovery
	// tooling, not everyday use.
	WildcardCredential string `yaml:"wildcard_credential"`
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{
		LockoutThreshold: DefaultLockoutThreshold,
	}
}

// Gate validates credentials against the device fingerprint and tracks
// the lockout counter. All state transitions happen under one mutex so
// concurrent validation attempts count correctly.
type Gate struct {
	mu          sync.Mutex
	state       State
	failures    int
	threshold   int
	wildcard    string
	fingerprint string
}

// New creates a gate in the Locked state, bound to the given live
// fingerprint.
func New(fingerprint string, cfg Config) *Gate {
	threshold := cfg.LockoutThreshold
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	return &Gate{
		state:       Locked,
		threshold:   threshold,
		wildcard:    cfg.WildcardCredential,
		fingerprint: fingerprint,
	}
}

// IssueCredential mints a credential embedding the given fingerprint.
// The format is "<uuid>.<fingerprint>"; only the segment after the final
// dot participates in validation.
func IssueCredential(fingerprint string) string {
	return uuid.NewString() + "." + fingerprint
}

// Validate checks a presented credential. It returns true and moves the
// gate to Unlocked when the embedded fingerprint matches (or the
// wildcard is presented). A failure increments the lockout counter;
// reaching the threshold suspends the gate and every later call returns
// errors.ErrAccessSuspended.
func (g *Gate) Validate(credential string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Suspended {
		return false, errors.ErrAccessSuspended
	}

	if g.credentialMatches(credential) {
		g.state = Unlocked
		g.failures = 0
		log.Debug("Gate unlocked")
		return true, nil
	}

	g.failures++
	g.state = Locked
	log.Warn("Credential validation failed",
		"consecutive_failures", g.failures,
		"threshold", g.threshold,
	)

	if g.failures >= g.threshold {
		g.state = Suspended
		log.Error("Lockout threshold reached, gate suspended until restart")
		return false, errors.ErrAccessSuspended
	}
	return false, nil
}

// Check fails unless the gate is Unlocked. Every gated store or cipher
// operation calls this first.
func (g *Gate) Check() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case Unlocked:
		return nil
	case Suspended:
		return errors.ErrAccessSuspended
	default:
		return errors.ErrAccessDenied
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Failures returns the current consecutive-failure count.
func (g *Gate) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// credentialMatches is called with the mutex held.
func (g *Gate) credentialMatches(credential string) bool {
	if g.wildcard != "" && credential == g.wildcard {
		return true
	}
	// The embedded fingerprint is everything after the final dot.
	idx := strings.LastIndex(credential, ".")
	if idx < 0 || idx == len(credential)-1 {
		return false
	}
	return credential[idx+1:] == g.fingerprint
}
