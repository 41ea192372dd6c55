package keyvault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelab/memvault/pkg/errors"
)

// fakeHostReader returns fixed attributes for deterministic tests.
type fakeHostReader struct {
	hostname    string
	processor   string
	cores       int
	machineID   string
	failMachine bool
}

func (f fakeHostReader) Hostname() (string, error) {
	return f.hostname, nil
}

func (f fakeHostReader) ProcessorID() (string, error) {
	return f.processor, nil
}

func (f fakeHostReader) NumCPU() (int, error) {
	return f.cores, nil
}

func (f fakeHostReader) MachineID() (string, error) {
	if f.failMachine {
		return "", errors.Wrap(errors.ErrHostAttribute, "machine id")
	}
	return f.machineID, nil
}

func baseReader() fakeHostReader {
	return fakeHostReader{
		hostname:  "workstation-01",
		processor: "GenuineIntel Family 6 Model 158",
		cores:     8,
		machineID: "5f2c3a1b9e8d4c7f",
	}
}

func TestFingerprintIsIdempotent(t *testing.T) {
	reader := baseReader()

	first := Fingerprint(reader)
	second := Fingerprint(reader)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex-encoded SHA-256
}

func TestFingerprintChangesWithAnyAttribute(t *testing.T) {
	base := Fingerprint(baseReader())

	tests := []struct {
		name   string
		reader fakeHostReader
	}{
		{
			name: "different hostname",
			reader: func() fakeHostReader {
				r := baseReader()
				r.hostname = "workstation-02"
				return r
			}(),
		},
		{
			name: "different processor",
			reader: func() fakeHostReader {
				r := baseReader()
				r.processor = "AuthenticAMD Family 25"
				return r
			}(),
		},
		{
			name: "different core count",
			reader: func() fakeHostReader {
				r := baseReader()
				r.cores = 16
				return r
			}(),
		},
		{
			name: "different machine id",
			reader: func() fakeHostReader {
				r := baseReader()
				r.machineID = "0000000000000000"
				return r
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, Fingerprint(tt.reader))
		})
	}
}

func TestFingerprintSubstitutesPlaceholderOnFailure(t *testing.T) {
	reader := baseReader()
	reader.failMachine = true

	// The unreadable attribute falls back to a placeholder instead of
	// aborting, and the result stays deterministic.
	first := Fingerprint(reader)
	second := Fingerprint(reader)
	require.Equal(t, first, second)

	// The placeholder differs from the readable attribute.
	assert.NotEqual(t, Fingerprint(baseReader()), first)
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	fp := Fingerprint(baseReader())
	seed := []byte("application-seed")

	key1 := DeriveKey(fp, seed, DefaultIterations)
	key2 := DeriveKey(fp, seed, DefaultIterations)

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, KeySize)
}

func TestDeriveKeyAvalanche(t *testing.T) {
	seed := []byte("application-seed")
	fp := Fingerprint(baseReader())

	// Flip a single character of the fingerprint; the derived key must
	// bear no resemblance to the original.
	altered := []byte(fp)
	if altered[0] == 'a' {
		altered[0] = 'b'
	} else {
		altered[0] = 'a'
	}

	key1 := DeriveKey(fp, seed, DefaultIterations)
	key2 := DeriveKey(string(altered), seed, DefaultIterations)

	assert.NotEqual(t, key1, key2)

	// Spot-check: a substantial share of bytes should differ.
	differing := 0
	for i := range key1 {
		if key1[i] != key2[i] {
			differing++
		}
	}
	assert.Greater(t, differing, KeySize/4)
}

func TestDeriveKeyEnforcesIterationFloor(t *testing.T) {
	fp := Fingerprint(baseReader())
	seed := []byte("application-seed")

	// Requesting fewer iterations than the floor silently clamps up, so
	// the result matches an explicit floor derivation.
	weak := DeriveKey(fp, seed, 1)
	floor := DeriveKey(fp, seed, MinIterations)

	assert.Equal(t, floor, weak)
}

func TestNewHoldsKeyForProcessLifetime(t *testing.T) {
	vault := New(baseReader(), Config{Seed: "application-seed", Iterations: DefaultIterations})

	require.NotNil(t, vault)
	assert.Len(t, vault.Key(), KeySize)
	assert.Equal(t, Fingerprint(baseReader()), vault.Fingerprint())

	// Repeated accessor calls return the precomputed values.
	assert.Equal(t, vault.Key(), vault.Key())
	assert.Equal(t, vault.Fingerprint(), vault.Fingerprint())
}

func TestDifferentSeedsYieldDifferentKeys(t *testing.T) {
	fp := Fingerprint(baseReader())

	key1 := DeriveKey(fp, []byte("seed-one"), DefaultIterations)
	key2 := DeriveKey(fp, []byte("seed-two"), DefaultIterations)

	assert.NotEqual(t, key1, key2)
}
