// ABOUTME: Tests for the conversation driver run loop
// ABOUTME: Covers topic kickoff, input pauses, mid-run messages, failures, and resumption

package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley/internal/llm"
)

// awaitInputPause waits until the session's run has paused for user input.
func awaitInputPause(t *testing.T, m *Manager, id string, minMessages int) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		s, err := m.Session(id)
		if err != nil {
			return false
		}
		snap = s
		return len(s.Messages) >= minMessages && !s.Processing && s.IsInitialized
	}, testWait, testTick)
	return snap
}

func TestSubmitTopicStartsConversation(t *testing.T) {
	m, _, _ := newTestManager(t, llm.MockResponse{Content: "Happy to discuss that."})
	id := m.CurrentID()

	require.NoError(t, m.Submit(context.Background(), "the weather"))

	snap := awaitInputPause(t, m, id, 2)
	assert.True(t, snap.IsInitialized)
	assert.Equal(t, "the weather", snap.InitialMessage)

	require.GreaterOrEqual(t, len(snap.Messages), 2)
	assert.Equal(t, SourceUser, snap.Messages[0].Source)
	assert.Equal(t, "the weather", snap.Messages[0].Content)
	assert.Equal(t, "assistant", snap.Messages[1].Source)
	assert.Equal(t, "Happy to discuss that.", snap.Messages[1].Content)

	// Paused for input, so the affordances flip to mid-conversation mode.
	assert.Equal(t, "Message to group...", snap.InputPlaceholder)
	assert.Equal(t, "Send", snap.SubmitLabel)
}

func TestEmptyFirstSubmitUsesDefaultTopic(t *testing.T) {
	m, _, _ := newTestManager(t, llm.MockResponse{Content: "Sure, where shall we begin?"})
	id := m.CurrentID()

	require.NoError(t, m.Submit(context.Background(), ""))

	snap := awaitInputPause(t, m, id, 2)
	assert.Equal(t, "Let's start a conversation", snap.InitialMessage)
	assert.Equal(t, "Let's start a conversation", snap.Messages[0].Content)
}

func TestSubmitDuringRunFeedsMailbox(t *testing.T) {
	m, _, _ := newTestManager(t,
		llm.MockResponse{Content: "First reply."},
		llm.MockResponse{Content: "Second reply."},
	)
	id := m.CurrentID()
	ctx := context.Background()

	require.NoError(t, m.Submit(ctx, "opening topic"))
	awaitInputPause(t, m, id, 2)

	require.NoError(t, m.Submit(ctx, "a follow-up question"))

	snap := awaitInputPause(t, m, id, 4)
	require.GreaterOrEqual(t, len(snap.Messages), 4)
	assert.Equal(t, SourceUser, snap.Messages[2].Source)
	assert.Equal(t, "a follow-up question", snap.Messages[2].Content)
	assert.Equal(t, "Second reply.", snap.Messages[3].Content)
}

func TestEmptySubmitMidConversationIgnored(t *testing.T) {
	m, _, _ := newTestManager(t, llm.MockResponse{Content: "Reply."})
	id := m.CurrentID()
	ctx := context.Background()

	require.NoError(t, m.Submit(ctx, "topic"))
	before := awaitInputPause(t, m, id, 2)

	require.NoError(t, m.Submit(ctx, ""))

	after, err := m.Session(id)
	require.NoError(t, err)
	assert.Len(t, after.Messages, len(before.Messages))
}

func TestRunFailureBecomesSystemMessage(t *testing.T) {
	m, registry, _ := newTestManager(t, llm.MockResponse{Err: errors.New("model unavailable")})
	id := m.CurrentID()

	require.NoError(t, m.Submit(context.Background(), "doomed topic"))

	var snap Snapshot
	require.Eventually(t, func() bool {
		s, err := m.Session(id)
		if err != nil {
			return false
		}
		snap = s
		return len(s.Messages) >= 2 && !s.Processing
	}, testWait, testTick)

	last := snap.Messages[len(snap.Messages)-1]
	assert.Equal(t, SourceSystem, last.Source)
	assert.Contains(t, last.Content, "An error occurred")
	assert.Contains(t, last.Content, "model unavailable")

	// The failed run released its registry handles.
	require.Eventually(t, func() bool {
		return registry.Token(id) == nil && registry.Termination(id) == nil
	}, testWait, testTick)

	// The session remains usable for UI reads.
	assert.True(t, snap.IsInitialized)
}

func TestStoppedRunResumesOnNextSubmit(t *testing.T) {
	m, registry, _ := newTestManager(t,
		llm.MockResponse{Content: "Before the stop."},
		llm.MockResponse{Content: "After the stop."},
	)
	id := m.CurrentID()
	ctx := context.Background()

	require.NoError(t, m.Submit(ctx, "resumption topic"))
	awaitInputPause(t, m, id, 2)

	// Stop the run the way a lifecycle operation would.
	registry.Terminate(id)
	registry.Cancel(id)
	require.Eventually(t, func() bool {
		return registry.Termination(id) == nil
	}, testWait, testTick)

	// A fresh submit starts a new run that carries the prior transcript.
	require.NoError(t, m.Submit(ctx, "picking it back up"))

	snap := awaitInputPause(t, m, id, 4)
	require.GreaterOrEqual(t, len(snap.Messages), 4)
	assert.Equal(t, "Before the stop.", snap.Messages[1].Content)
	assert.Equal(t, "picking it back up", snap.Messages[2].Content)
	assert.Equal(t, "After the stop.", snap.Messages[3].Content)
}

func TestRunEndPublishesEnded(t *testing.T) {
	m, registry, _ := newTestManager(t, llm.MockResponse{Content: "hello"})
	id := m.CurrentID()
	ctx := context.Background()

	updates, subID := m.broadcaster.Subscribe(ctx, id)
	defer m.broadcaster.Unsubscribe(id, subID)

	require.NoError(t, m.Submit(ctx, "topic"))
	awaitInputPause(t, m, id, 2)

	registry.Terminate(id)
	registry.Cancel(id)

	require.Eventually(t, func() bool {
		for {
			select {
			case u := <-updates:
				if u != nil && u.Kind == UpdateEnded {
					return true
				}
			default:
				return false
			}
		}
	}, testWait, testTick)
}
