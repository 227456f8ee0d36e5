// ABOUTME: Tests for the session manager lifecycle operations
// ABOUTME: Covers create/switch/delete semantics and the current-session invariant

package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley/internal/llm"
	"github.com/2389/parley/internal/store"
	"github.com/2389/parley/internal/token"
)

const testWait = 5 * time.Second
const testTick = 5 * time.Millisecond

func newTestManager(t *testing.T, responses ...llm.MockResponse) (*Manager, *token.Registry, store.Store) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry := token.NewRegistry(nil)
	m, err := NewManager(context.Background(), Options{
		Store:        st,
		Registry:     registry,
		Client:       llm.NewMockClient(responses...),
		Model:        "test-model",
		Participants: []Participant{{Name: "assistant", SystemMessage: "You are helpful."}},
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, registry, st
}

func TestNewManagerCreatesInitialSession(t *testing.T) {
	m, _, _ := newTestManager(t)

	current := m.Current()
	assert.NotEmpty(t, current.ID)
	assert.Equal(t, "New Chat", current.Name)
	assert.False(t, current.IsInitialized)
	assert.Len(t, m.Sessions(), 1)
}

func TestUninitializedSessionAffordances(t *testing.T) {
	m, _, _ := newTestManager(t)

	current := m.Current()
	assert.Equal(t, "Kick-off with the topic of interest", current.InputPlaceholder)
	assert.Equal(t, "Submit Topic & Start Chat", current.SubmitLabel)
	assert.False(t, current.HasMessages)
}

func TestCreateSetsCurrent(t *testing.T) {
	m, _, _ := newTestManager(t)

	snap, err := m.Create(context.Background(), "Second Chat")
	require.NoError(t, err)

	assert.Equal(t, snap.ID, m.CurrentID())
	assert.Len(t, m.Sessions(), 2)
}

func TestCreateEmptyNameDefaults(t *testing.T) {
	m, _, _ := newTestManager(t)

	snap, err := m.Create(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled", snap.Name)
}

func TestSwitchToUnknownSessionRejected(t *testing.T) {
	m, _, _ := newTestManager(t)
	before := m.CurrentID()

	err := m.Switch("no-such-session")
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.Equal(t, before, m.CurrentID())
}

func TestSwitchToCurrentIsNoOp(t *testing.T) {
	m, registry, _ := newTestManager(t)
	id := m.CurrentID()

	require.NoError(t, m.Switch(id))
	assert.Equal(t, id, m.CurrentID())
	// No stop handles were touched for a self-switch.
	assert.Nil(t, registry.Token(id))
}

func TestSwitchMovesCurrent(t *testing.T) {
	m, _, _ := newTestManager(t)
	first := m.CurrentID()

	second, err := m.Create(context.Background(), "Other")
	require.NoError(t, err)
	require.Equal(t, second.ID, m.CurrentID())

	require.NoError(t, m.Switch(first))
	assert.Equal(t, first, m.CurrentID())
}

func TestSwitchStopsActiveRun(t *testing.T) {
	m, registry, _ := newTestManager(t, llm.MockResponse{Content: "hi there"})
	first := m.CurrentID()

	require.NoError(t, m.Submit(context.Background(), "a topic"))
	require.Eventually(t, func() bool {
		return registry.Termination(first) != nil
	}, testWait, testTick)

	second, err := m.Create(context.Background(), "Other")
	require.NoError(t, err)

	// Create moved the pointer without stopping the run; an explicit
	// switch back and forth is not needed — switch away from first while
	// its run is active.
	require.NoError(t, m.Switch(first))
	require.NoError(t, m.Switch(second.ID))

	// The displaced session's run winds down and releases its handles.
	require.Eventually(t, func() bool {
		return registry.Termination(first) == nil && registry.Token(first) == nil
	}, testWait, testTick)
	require.Eventually(t, func() bool {
		s, err := m.Session(first)
		return err == nil && !s.Processing
	}, testWait, testTick)
}

func TestDeleteUnknownSessionRejected(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.Delete(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.Len(t, m.Sessions(), 1)
}

func TestDeleteNonCurrentKeepsCurrent(t *testing.T) {
	m, _, _ := newTestManager(t)
	first := m.CurrentID()

	second, err := m.Create(context.Background(), "Other")
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), first))
	assert.Equal(t, second.ID, m.CurrentID())
	assert.Len(t, m.Sessions(), 1)
}

func TestDeleteCurrentPicksRemaining(t *testing.T) {
	m, _, _ := newTestManager(t)
	first := m.CurrentID()

	second, err := m.Create(context.Background(), "Other")
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), second.ID))
	assert.Equal(t, first, m.CurrentID())
}

func TestDeleteLastSessionCreatesFresh(t *testing.T) {
	m, _, st := newTestManager(t)
	only := m.CurrentID()

	require.NoError(t, m.Delete(context.Background(), only))

	current := m.Current()
	assert.NotEmpty(t, current.ID)
	assert.NotEqual(t, only, current.ID)
	assert.Equal(t, "New Chat", current.Name)
	assert.Len(t, m.Sessions(), 1)

	// The deletion reached the store too.
	_, err := st.GetSession(context.Background(), only)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteStopsRunAndDropsHandles(t *testing.T) {
	m, registry, _ := newTestManager(t, llm.MockResponse{Content: "hi"})
	id := m.CurrentID()

	require.NoError(t, m.Submit(context.Background(), "topic"))
	require.Eventually(t, func() bool {
		return registry.Termination(id) != nil
	}, testWait, testTick)

	require.NoError(t, m.Delete(context.Background(), id))

	assert.Nil(t, registry.Token(id))
	assert.Nil(t, registry.Termination(id))
	_, err := m.Session(id)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestManagerReloadsPersistedSessions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reload.db")
	ctx := context.Background()

	st, err := store.NewSQLiteStore(path)
	require.NoError(t, err)

	m, err := NewManager(ctx, Options{
		Store:        st,
		Registry:     token.NewRegistry(nil),
		Client:       llm.NewMockClient(llm.MockResponse{Content: "hello!"}),
		Model:        "test-model",
		Participants: []Participant{{Name: "assistant"}},
	})
	require.NoError(t, err)

	id := m.CurrentID()
	require.NoError(t, m.Submit(ctx, "persistence test"))
	require.Eventually(t, func() bool {
		s, err := m.Session(id)
		return err == nil && len(s.Messages) >= 2
	}, testWait, testTick)

	m.Close()
	require.NoError(t, st.Close())

	st2, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer st2.Close()

	m2, err := NewManager(ctx, Options{
		Store:        st2,
		Registry:     token.NewRegistry(nil),
		Client:       llm.NewMockClient(),
		Model:        "test-model",
		Participants: []Participant{{Name: "assistant"}},
	})
	require.NoError(t, err)
	defer m2.Close()

	restored, err := m2.Session(id)
	require.NoError(t, err)
	assert.True(t, restored.IsInitialized)
	assert.Equal(t, "persistence test", restored.InitialMessage)
	require.GreaterOrEqual(t, len(restored.Messages), 2)
	assert.Equal(t, SourceUser, restored.Messages[0].Source)
	assert.Equal(t, "persistence test", restored.Messages[0].Content)
}

func TestMailboxLastWriteWins(t *testing.T) {
	s := newSession("s1", "Test")

	s.putMailbox("first")
	s.putMailbox("second")

	got, ok := s.takeMailbox()
	require.True(t, ok)
	assert.Equal(t, "second", got)

	_, ok = s.takeMailbox()
	assert.False(t, ok)
}
