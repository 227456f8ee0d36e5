// ABOUTME: RoundRobin team run loop with streaming events
// ABOUTME: Gives each participant a turn in order until terminated or cancelled

package team

import (
	"context"
	"errors"
)

// ErrTerminated is returned from a user-proxy input func when the run's
// termination condition fires while waiting for input.
var ErrTerminated = errors.New("run terminated")

// EventKind discriminates stream events.
type EventKind int

const (
	// EventMessage carries a message produced by a participant.
	EventMessage EventKind = iota
	// EventInputRequest marks that the team is waiting on the user proxy.
	EventInputRequest
	// EventResult is the final marker of a run; Content holds the stop reason.
	EventResult
	// EventError reports a failed run; Content holds the error text.
	EventError
)

// Event is one item in a run's stream.
type Event struct {
	Kind    EventKind
	Source  string
	Content string
}

// Message is one entry in a team's transcript.
type Message struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// streamBufferSize matches the response channel sizing used elsewhere.
const streamBufferSize = 16

// RoundRobin runs a group conversation where participants speak in fixed
// order. The zero value is not usable; construct with NewRoundRobin.
type RoundRobin struct {
	participants []Participant
	termination  *ExternalTermination

	// transcript and next form the continuation state.
	transcript []Message
	next       int
}

// NewRoundRobin creates a team over the given participants. The termination
// condition is checked at every turn boundary.
func NewRoundRobin(participants []Participant, termination *ExternalTermination) *RoundRobin {
	return &RoundRobin{
		participants: participants,
		termination:  termination,
	}
}

// RunStream starts the conversation and returns a channel of events. The
// channel is closed when the run reaches a terminal state. The task, if
// non-empty, is spoken by the user before the first turn. The token, if
// non-nil, unwinds the run immediately when fired; the in-flight model call
// observes it through context cancellation.
//
// A run ends one of three ways: the termination condition fires (graceful,
// EventResult), the token or ctx fires (no terminal event, channel just
// closes), or a participant fails (EventError).
func (t *RoundRobin) RunStream(ctx context.Context, task string, token *CancellationToken) <-chan Event {
	out := make(chan Event, streamBufferSize)

	runCtx, cancel := context.WithCancel(ctx)
	if token != nil {
		go func() {
			select {
			case <-token.Done():
				cancel()
			case <-runCtx.Done():
			}
		}()
	}

	go func() {
		defer close(out)
		defer cancel()

		if task != "" {
			msg := Message{Source: "user", Content: task}
			t.transcript = append(t.transcript, msg)
			if !t.emit(runCtx, out, Event{Kind: EventMessage, Source: msg.Source, Content: msg.Content}) {
				return
			}
		}

		for {
			if t.termination != nil && t.termination.Terminated() {
				t.emit(runCtx, out, Event{Kind: EventResult, Content: "terminated"})
				return
			}
			if runCtx.Err() != nil {
				return
			}

			p := t.participants[t.next]
			t.next = (t.next + 1) % len(t.participants)

			if _, ok := p.(*UserProxy); ok {
				if !t.emit(runCtx, out, Event{Kind: EventInputRequest, Source: p.Name()}) {
					return
				}
			}

			reply, err := p.Reply(runCtx, t.transcript)
			if err != nil {
				if errors.Is(err, ErrTerminated) {
					t.emit(runCtx, out, Event{Kind: EventResult, Content: "terminated"})
					return
				}
				if runCtx.Err() != nil {
					return
				}
				t.emit(runCtx, out, Event{Kind: EventError, Source: p.Name(), Content: err.Error()})
				return
			}

			msg := Message{Source: p.Name(), Content: reply}
			t.transcript = append(t.transcript, msg)
			if !t.emit(runCtx, out, Event{Kind: EventMessage, Source: msg.Source, Content: msg.Content}) {
				return
			}
		}
	}()

	return out
}

// emit sends an event unless the run has been cancelled. Returns false when
// the caller should stop.
func (t *RoundRobin) emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
