// ABOUTME: Tests for the round-robin team run loop
// ABOUTME: Covers turn order, termination, cancellation, and continuation state

package team

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley/internal/llm"
)

func newTestAssistant(name string, responses ...llm.MockResponse) *Assistant {
	return NewAssistant(name, "You are "+name, "test-model", llm.NewMockClient(responses...))
}

// collect drains a run's stream with a safety timeout.
func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func TestRunStreamEmitsTaskFirst(t *testing.T) {
	term := NewExternalTermination()
	rt := NewRoundRobin([]Participant{
		newTestAssistant("alpha", llm.MockResponse{Content: "hello from alpha"}),
	}, term)

	events := rt.RunStream(context.Background(), "the task", nil)

	first := <-events
	assert.Equal(t, EventMessage, first.Kind)
	assert.Equal(t, "user", first.Source)
	assert.Equal(t, "the task", first.Content)

	second := <-events
	assert.Equal(t, EventMessage, second.Kind)
	assert.Equal(t, "alpha", second.Source)
	assert.Equal(t, "hello from alpha", second.Content)

	term.Set()
	collect(t, events)
}

func TestRunStreamRoundRobinOrder(t *testing.T) {
	term := NewExternalTermination()
	rt := NewRoundRobin([]Participant{
		newTestAssistant("alpha", llm.MockResponse{Content: "a"}),
		newTestAssistant("beta", llm.MockResponse{Content: "b"}),
	}, term)

	events := rt.RunStream(context.Background(), "go", nil)

	var sources []string
	for ev := range events {
		if ev.Kind == EventMessage {
			sources = append(sources, ev.Source)
		}
		if len(sources) == 5 {
			term.Set()
		}
	}

	require.GreaterOrEqual(t, len(sources), 5)
	assert.Equal(t, []string{"user", "alpha", "beta", "alpha", "beta"}, sources[:5])
}

func TestRunStreamTerminationEmitsResult(t *testing.T) {
	term := NewExternalTermination()
	term.Set()

	rt := NewRoundRobin([]Participant{
		newTestAssistant("alpha", llm.MockResponse{Content: "never spoken"}),
	}, term)

	events := collect(t, rt.RunStream(context.Background(), "", nil))

	require.Len(t, events, 1)
	assert.Equal(t, EventResult, events[0].Kind)
	assert.Equal(t, "terminated", events[0].Content)
}

func TestRunStreamCancellationClosesStream(t *testing.T) {
	term := NewExternalTermination()
	rt := NewRoundRobin([]Participant{
		newTestAssistant("alpha", llm.MockResponse{Content: "a"}),
	}, term)

	token := NewCancellationToken()
	events := rt.RunStream(context.Background(), "go", token)

	// Let at least the task come through, then cancel.
	<-events
	token.Cancel()

	// No terminal event is required; the stream must simply close.
	collect(t, events)
}

func TestRunStreamParticipantErrorEmitsError(t *testing.T) {
	term := NewExternalTermination()
	rt := NewRoundRobin([]Participant{
		newTestAssistant("alpha", llm.MockResponse{Err: context.DeadlineExceeded}),
	}, term)

	events := collect(t, rt.RunStream(context.Background(), "go", nil))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Kind)
	assert.Equal(t, "alpha", last.Source)
	assert.Contains(t, last.Content, "alpha")
}

func TestRunStreamUserProxyInputRequest(t *testing.T) {
	term := NewExternalTermination()
	asked := false
	proxy := NewUserProxy("user", func(ctx context.Context) (string, error) {
		if asked {
			return "", ErrTerminated
		}
		asked = true
		return "my answer", nil
	})

	rt := NewRoundRobin([]Participant{proxy}, term)
	events := collect(t, rt.RunStream(context.Background(), "", nil))

	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, EventInputRequest, events[0].Kind)
	assert.Equal(t, EventMessage, events[1].Kind)
	assert.Equal(t, "my answer", events[1].Content)
	// The second input request precedes the terminated result.
	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind)
	assert.Equal(t, "terminated", last.Content)
}

func TestSaveStateRoundTrip(t *testing.T) {
	term := NewExternalTermination()
	rt := NewRoundRobin([]Participant{
		newTestAssistant("alpha", llm.MockResponse{Content: "a"}),
		newTestAssistant("beta", llm.MockResponse{Content: "b"}),
	}, term)

	events := rt.RunStream(context.Background(), "go", nil)
	count := 0
	for ev := range events {
		if ev.Kind == EventMessage {
			count++
		}
		if count == 3 { // user, alpha, beta
			term.Set()
		}
	}

	blob, err := rt.SaveState()
	require.NoError(t, err)

	restored := NewRoundRobin([]Participant{
		newTestAssistant("alpha", llm.MockResponse{Content: "a2"}),
		newTestAssistant("beta", llm.MockResponse{Content: "b2"}),
	}, NewExternalTermination())
	require.NoError(t, restored.LoadState(blob))

	blob2, err := restored.SaveState()
	require.NoError(t, err)
	assert.JSONEq(t, string(blob), string(blob2))
}

func TestLoadStateClampsNextIndex(t *testing.T) {
	blob, err := json.Marshal(map[string]any{
		"transcript": []Message{{Source: "user", Content: "hi"}},
		"next":       7,
	})
	require.NoError(t, err)

	rt := NewRoundRobin([]Participant{
		newTestAssistant("alpha", llm.MockResponse{Content: "a"}),
		newTestAssistant("beta", llm.MockResponse{Content: "b"}),
	}, NewExternalTermination())
	require.NoError(t, rt.LoadState(blob))

	assert.Equal(t, 1, rt.next)
}

func TestLoadStateRejectsGarbage(t *testing.T) {
	rt := NewRoundRobin(nil, NewExternalTermination())
	assert.Error(t, rt.LoadState([]byte("not json")))
}

func TestCancellationTokenIdempotent(t *testing.T) {
	tok := NewCancellationToken()
	assert.False(t, tok.Cancelled())

	tok.Cancel()
	tok.Cancel() // second cancel must not panic

	assert.True(t, tok.Cancelled())
	select {
	case <-tok.Done():
	default:
		t.Fatal("Done channel not closed after Cancel")
	}
}

func TestExternalTerminationLatches(t *testing.T) {
	term := NewExternalTermination()
	assert.False(t, term.Terminated())

	term.Set()
	term.Set()

	assert.True(t, term.Terminated())
	select {
	case <-term.Done():
	default:
		t.Fatal("Done channel not closed after Set")
	}
}

func TestAssistantPrefixesOtherSpeakers(t *testing.T) {
	mock := llm.NewMockClient(llm.MockResponse{Content: "reply"})
	a := NewAssistant("alpha", "system", "test-model", mock)

	_, err := a.Reply(context.Background(), []Message{
		{Source: "user", Content: "hello"},
		{Source: "alpha", Content: "hi there"},
		{Source: "beta", Content: "me too"},
	})
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	msgs := calls[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "user: hello", msgs[0].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hi there", msgs[1].Content)
	assert.Equal(t, llm.RoleUser, msgs[2].Role)
	assert.Equal(t, "beta: me too", msgs[2].Content)
}

func TestAssistantRejectsEmptyReply(t *testing.T) {
	a := NewAssistant("alpha", "system", "test-model", llm.NewMockClient(llm.MockResponse{Content: "   "}))

	_, err := a.Reply(context.Background(), []Message{{Source: "user", Content: "hi"}})
	assert.Error(t, err)
}
