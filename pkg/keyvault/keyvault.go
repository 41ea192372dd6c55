// Package keyvault derives the per-device encryption key.
//
// The key is a function of a hardware fingerprint (stable host attributes)
// and a static application seed, stretched through PBKDF2. It is computed
// once at construction, held in memory for the process lifetime, and is
// never persisted or logged.
package keyvault

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/log"
)

const (
	// KeySize is the size of the derived key in bytes (256 bits).
	KeySize = 32

	// DefaultIterations is the PBKDF2 iteration count used when the
	// caller does not override it. Must never drop below MinIterations.
	DefaultIterations = 120000

	// MinIterations is the floor for the PBKDF2 iteration count.
	MinIterations = 100000
)

// HostReader supplies the stable host attributes the fingerprint is
// derived from. Production code uses OSHostReader; tests substitute
// a fixed reader.
type HostReader interface {
	// Hostname returns the machine name.
	Hostname() (string, error)

	// ProcessorID returns a stable identifier for the processor.
	ProcessorID() (string, error)

	// NumCPU returns the logical CPU count.
	NumCPU() (int, error)

	// MachineID returns an installed-storage / OS install identifier.
	// Optional: readers may return an error when the platform has none.
	MachineID() (string, error)
}

// OSHostReader reads host attributes from the running operating system.
type OSHostReader struct{}

// Hostname implements HostReader.
func (OSHostReader) Hostname() (string, error) {
	return os.Hostname()
}

// ProcessorID implements HostReader.
//
// On Linux the model name line of /proc/cpuinfo is used; elsewhere the
// PROCESSOR_IDENTIFIER environment variable is consulted. Either source
// is stable across reboots on the same machine.
func (OSHostReader) ProcessorID() (string, error) {
	if id := os.Getenv("PROCESSOR_IDENTIFIER"); id != "" {
		return id, nil
	}
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return "", errors.Wrap(errors.ErrHostAttribute, "processor id")
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "model name") {
			if _, value, ok := strings.Cut(line, ":"); ok {
				return strings.TrimSpace(value), nil
			}
		}
	}
	return "", errors.Wrap(errors.ErrHostAttribute, "processor id")
}

// NumCPU implements HostReader.
func (OSHostReader) NumCPU() (int, error) {
	return runtime.NumCPU(), nil
}

// MachineID implements HostReader.
func (OSHostReader) MachineID() (string, error) {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data)), nil
		}
	}
	return "", errors.Wrap(errors.ErrHostAttribute, "machine id")
}

// Config contains configuration options for the key vault.
type Config struct {
	// Seed is the static application seed mixed into key derivation.
	Seed string `yaml:"seed"`

	// Iterations is the PBKDF2 iteration count.
	Iterations int `yaml:"iterations"`
}

// DefaultConfig returns the default key vault configuration.
func DefaultConfig() Config {
	return Config{
		Iterations: DefaultIterations,
	}
}

// KeyVault holds the hardware fingerprint and the key derived from it.
type KeyVault struct {
	fingerprint string
	key         []byte
}

// New computes the fingerprint and derives the key. Unreadable host
// attributes are substituted with an empty placeholder so the fingerprint
// stays deterministic on hosts where an attribute is missing; the
// substitution is logged but never fatal.
func New(reader HostReader, cfg Config) *KeyVault {
	fp := Fingerprint(reader)
	return &KeyVault{
		fingerprint: fp,
		key:         DeriveKey(fp, []byte(cfg.Seed), cfg.Iterations),
	}
}

// Fingerprint derives the hardware fingerprint from the reader's
// attributes. Identical attributes always produce the identical
// fingerprint; any differing attribute produces a different one.
func Fingerprint(reader HostReader) string {
	hostname := readAttribute("hostname", reader.Hostname)
	processor := readAttribute("processor_id", reader.ProcessorID)
	machineID := readAttribute("machine_id", reader.MachineID)

	cores := ""
	if n, err := reader.NumCPU(); err == nil {
		cores = strconv.Itoa(n)
	} else {
		log.Warn("Host attribute unreadable, using placeholder",
			"attribute", "num_cpu", "error", err)
	}

	// Canonical attribute order; a separator keeps "ab"+"c" distinct
	// from "a"+"bc".
	joined := strings.Join([]string{hostname, processor, cores, machineID}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// DeriveKey stretches the fingerprint and seed into a KeySize-byte key.
// The fingerprint bytes act as the salt, the seed as the password. The
// result is deterministic for identical inputs.
func DeriveKey(fingerprint string, seed []byte, iterations int) []byte {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	return pbkdf2.Key(seed, []byte(fingerprint), iterations, KeySize, sha256.New)
}

// Fingerprint returns the fingerprint computed at construction.
func (v *KeyVault) Fingerprint() string {
	return v.fingerprint
}

// Key returns the derived key. Callers must not retain or mutate it
// beyond handing it to the seal package.
func (v *KeyVault) Key() []byte {
	return v.key
}

// readAttribute reads one attribute, falling back to an empty placeholder
// when the reader cannot supply it.
func readAttribute(name string, read func() (string, error)) string {
	value, err := read()
	if err != nil {
		log.Warn("Host attribute unreadable, using placeholder",
			"attribute", name, "error", err)
		return ""
	}
	return value
}
