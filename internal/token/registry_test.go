// ABOUTME: Tests for the cancellation token and termination registry
// ABOUTME: Covers last-write-wins storage, unknown-id no-ops, and idempotent removal

package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley/internal/team"
)

func TestRegistryStoreAndRetrieve(t *testing.T) {
	r := NewRegistry(nil)

	tok := team.NewCancellationToken()
	term := team.NewExternalTermination()

	r.StoreToken("s1", tok)
	r.StoreTermination("s1", term)

	assert.Same(t, tok, r.Token("s1"))
	assert.Same(t, term, r.Termination("s1"))
}

func TestRegistryUnknownIDReturnsNil(t *testing.T) {
	r := NewRegistry(nil)

	assert.Nil(t, r.Token("missing"))
	assert.Nil(t, r.Termination("missing"))
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry(nil)

	first := team.NewCancellationToken()
	second := team.NewCancellationToken()

	r.StoreToken("s1", first)
	r.StoreToken("s1", second)

	assert.Same(t, second, r.Token("s1"))
}

func TestRegistryCancelFiresStoredToken(t *testing.T) {
	r := NewRegistry(nil)

	tok := team.NewCancellationToken()
	r.StoreToken("s1", tok)

	require.True(t, r.Cancel("s1"))
	assert.True(t, tok.Cancelled())
}

func TestRegistryTerminateFiresStoredCondition(t *testing.T) {
	r := NewRegistry(nil)

	term := team.NewExternalTermination()
	r.StoreTermination("s1", term)

	require.True(t, r.Terminate("s1"))
	assert.True(t, term.Terminated())
}

func TestRegistryCancelUnknownIDIsNoOp(t *testing.T) {
	r := NewRegistry(nil)

	assert.False(t, r.Cancel("missing"))
	assert.False(t, r.Terminate("missing"))
}

func TestRegistryRemoveDropsBothHandles(t *testing.T) {
	r := NewRegistry(nil)

	r.StoreToken("s1", team.NewCancellationToken())
	r.StoreTermination("s1", team.NewExternalTermination())

	r.Remove("s1")

	assert.Nil(t, r.Token("s1"))
	assert.Nil(t, r.Termination("s1"))

	// Removing again is harmless.
	r.Remove("s1")
}

func TestRegistryRemoveDoesNotFireHandles(t *testing.T) {
	r := NewRegistry(nil)

	tok := team.NewCancellationToken()
	term := team.NewExternalTermination()
	r.StoreToken("s1", tok)
	r.StoreTermination("s1", term)

	r.Remove("s1")

	assert.False(t, tok.Cancelled())
	assert.False(t, term.Terminated())
}

func TestRegistrySessionsAreIndependent(t *testing.T) {
	r := NewRegistry(nil)

	a := team.NewCancellationToken()
	b := team.NewCancellationToken()
	r.StoreToken("a", a)
	r.StoreToken("b", b)

	require.True(t, r.Cancel("a"))

	assert.True(t, a.Cancelled())
	assert.False(t, b.Cancelled())
}
