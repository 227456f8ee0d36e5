// ABOUTME: Conversation driver running one team conversation per session
// ABOUTME: Relays stream events into the session history and saves continuation state

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/parley/internal/store"
	"github.com/2389/parley/internal/team"
)

// runConversation drives one team run for a session: registers stop handles,
// builds the team, relays stream events into the session, and saves the
// continuation state when the stream closes. Always exits cleanly; failures
// surface as system messages in the session, never as returned errors.
func (m *Manager) runConversation(s *Session, task string) {
	logger := m.logger.With("component", "driver", "session_id", s.id)

	// The termination handle is registered before the run starts, so a
	// switch or delete landing mid-setup is still observed.
	termination := team.NewExternalTermination()
	m.registry.StoreTermination(s.id, termination)

	participants := make([]team.Participant, 0, len(m.participants)+1)
	for _, p := range m.participants {
		participants = append(participants, team.NewAssistant(p.Name, p.SystemMessage, m.model, m.client))
	}
	participants = append(participants, team.NewUserProxy(SourceUser, m.inputFunc(s, termination)))

	rt := team.NewRoundRobin(participants, termination)
	if blob := s.getTeamState(); len(blob) > 0 {
		if err := rt.LoadState(blob); err != nil {
			logger.Error("failed to load team state, starting fresh", "error", err)
		}
	}

	token := team.NewCancellationToken()
	m.registry.StoreToken(s.id, token)

	if m.broadcastProcessing(s, true) {
		logger.Debug("run started")
	}

	events := rt.RunStream(context.Background(), task, token)
	for ev := range events {
		switch ev.Kind {
		case team.EventMessage:
			m.record(s, ev.Source, ev.Content)
			m.broadcastProcessing(s, true)
		case team.EventInputRequest:
			m.broadcastProcessing(s, false)
		case team.EventError:
			logger.Error("run failed", "source", ev.Source, "error", ev.Content)
			m.record(s, SourceSystem, fmt.Sprintf("An error occurred: %s", ev.Content))
		case team.EventResult:
			logger.Info("run finished", "reason", ev.Content)
		}
	}

	// The stream is closed, so the transcript is at a consistent point.
	// Save the continuation blob; a failure here costs resumability, not
	// the run itself.
	if blob, err := rt.SaveState(); err != nil {
		logger.Error("failed to save team state", "error", err)
	} else {
		s.setTeamState(blob)
		persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := m.store.SaveTeamState(persistCtx, s.id, blob); err != nil {
			logger.Error("failed to persist team state", "error", err)
		}
		cancel()
	}

	s.endRun()
	m.registry.Remove(s.id)
	m.broadcaster.Publish(s.id, &Update{Kind: UpdateEnded, SessionID: s.id})
	logger.Debug("run ended")
}

// record appends a message to the session, persists it, and broadcasts it.
// Record first, then broadcast, so a subscriber that refetches sees the
// message it was just told about.
func (m *Manager) record(s *Session, source, content string) {
	msg := Message{
		ID:        uuid.New().String(),
		Source:    source,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.appendMessage(msg)

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	if err := m.store.SaveMessage(persistCtx, &store.Message{
		ID:        msg.ID,
		SessionID: s.id,
		Source:    msg.Source,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}); err != nil {
		m.logger.Error("failed to persist message", "session_id", s.id, "error", err)
	}
	cancel()

	m.broadcaster.Publish(s.id, &Update{Kind: UpdateMessage, SessionID: s.id, Message: &msg})
}

// broadcastProcessing updates the session's processing flag and publishes a
// status update when it changed. Returns true when the flag changed.
func (m *Manager) broadcastProcessing(s *Session, v bool) bool {
	if !s.setProcessing(v) {
		return false
	}
	m.broadcaster.Publish(s.id, &Update{Kind: UpdateStatus, SessionID: s.id, Processing: v})
	return true
}

// inputFunc builds the user proxy's blocking input callback for a session.
// It parks on the mailbox's wake-up channel, returning the pending message
// when one appears. Termination is selected on too, so a graceful stop
// requested while the run waits for input ends the run instead of hanging
// on a user who will never answer.
func (m *Manager) inputFunc(s *Session, termination *team.ExternalTermination) team.InputFunc {
	return func(ctx context.Context) (string, error) {
		for {
			if termination.Terminated() {
				return "", team.ErrTerminated
			}
			if text, ok := s.takeMailbox(); ok {
				return text, nil
			}

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-termination.Done():
			case <-s.mailboxReady():
			}
		}
	}
}
