package gate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelab/memvault/pkg/errors"
)

const testFingerprint = "0f5c9a1e7b3d4286a0d1c2e3f4051627384950617283940a5b6c7d8e9f001122"

func TestGateStartsLocked(t *testing.T) {
	g := New(testFingerprint, DefaultConfig())

	assert.Equal(t, Locked, g.State())
	assert.ErrorIs(t, g.Check(), errors.ErrAccessDenied)
}

func TestValidCredentialUnlocks(t *testing.T) {
	g := New(testFingerprint, DefaultConfig())

	ok, err := g.Validate(IssueCredential(testFingerprint))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Unlocked, g.State())
	assert.NoError(t, g.Check())
}

func TestInvalidCredentialIncrementsCounter(t *testing.T) {
	g := New(testFingerprint, Config{LockoutThreshold: 5})

	ok, err := g.Validate("garbage.deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Locked, g.State())
	assert.Equal(t, 1, g.Failures())
}

func TestFailureAfterUnlockRelocks(t *testing.T) {
	g := New(testFingerprint, Config{LockoutThreshold: 5})

	ok, err := g.Validate(IssueCredential(testFingerprint))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.Validate("wrong.fingerprint")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Locked, g.State())
	assert.ErrorIs(t, g.Check(), errors.ErrAccessDenied)
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	g := New(testFingerprint, Config{LockoutThreshold: 3})

	_, err := g.Validate("wrong.aa")
	require.NoError(t, err)
	_, err = g.Validate("wrong.bb")
	require.NoError(t, err)

	ok, err := g.Validate(IssueCredential(testFingerprint))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, g.Failures())
}

func TestLockoutThresholdSuspends(t *testing.T) {
	g := New(testFingerprint, Config{LockoutThreshold: 3})

	_, err := g.Validate("wrong.aa")
	require.NoError(t, err)
	_, err = g.Validate("wrong.bb")
	require.NoError(t, err)

	// Third consecutive failure crosses the threshold.
	ok, err := g.Validate("wrong.cc")
	assert.False(t, ok)
	assert.ErrorIs(t, err, errors.ErrAccessSuspended)
	assert.Equal(t, Suspended, g.State())
}

func TestSuspensionIsTerminal(t *testing.T) {
	g := New(testFingerprint, Config{LockoutThreshold: 1})

	_, err := g.Validate("wrong.aa")
	require.ErrorIs(t, err, errors.ErrAccessSuspended)

	// Even a correct credential no longer helps.
	ok, err := g.Validate(IssueCredential(testFingerprint))
	assert.False(t, ok)
	assert.ErrorIs(t, err, errors.ErrAccessSuspended)
	assert.ErrorIs(t, g.Check(), errors.ErrAccessSuspended)
}

func TestWildcardCredential(t *testing.T) {
	g := New(testFingerprint, Config{
		LockoutThreshold:   3,
		WildcardCredential: "recovery-override",
	})

	ok, err := g.Validate("recovery-override")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Unlocked, g.State())
}

func TestEmptyWildcardIsNotAFreePass(t *testing.T) {
	g := New(testFingerprint, DefaultConfig())

	ok, err := g.Validate("")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMalformedCredentials(t *testing.T) {
	g := New(testFingerprint, Config{LockoutThreshold: 10})

	for _, credential := range []string{
		"no-separator",
		"trailing-dot.",
		"." + testFingerprint[:10],
	} {
		ok, err := g.Validate(credential)
		require.NoError(t, err)
		assert.False(t, ok, "credential %q should not validate", credential)
	}
}

func TestIssueCredentialEmbedsFingerprint(t *testing.T) {
	c1 := IssueCredential(testFingerprint)
	c2 := IssueCredential(testFingerprint)

	// Distinct credentials, same embedded fingerprint.
	assert.NotEqual(t, c1, c2)

	g := New(testFingerprint, DefaultConfig())
	ok, err := g.Validate(c1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentFailuresCountAtomically(t *testing.T) {
	const threshold = 50
	g := New(testFingerprint, Config{LockoutThreshold: threshold})

	var wg sync.WaitGroup
	for i := 0; i < threshold; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Validate("wrong.fingerprint") //nolint:errcheck
		}()
	}
	wg.Wait()

	// Exactly threshold failures must have been counted.
	assert.Equal(t, Suspended, g.State())
}
