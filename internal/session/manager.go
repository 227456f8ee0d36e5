// ABOUTME: Session Manager owning the session set and the current pointer
// ABOUTME: Lifecycle operations cooperate with the token registry to stop in-flight runs

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/parley/internal/llm"
	"github.com/2389/parley/internal/store"
	"github.com/2389/parley/internal/token"
)

// ErrUnknownSession is returned when an operation references a session id
// that does not exist.
var ErrUnknownSession = errors.New("unknown session")

// defaultTopic opens a run when the user submits an empty first message.
const defaultTopic = "Let's start a conversation"

// persistTimeout bounds store writes issued from driver goroutines, detached
// from any request context so persistence survives client disconnects.
const persistTimeout = 5 * time.Second

// Participant configures one AI seat in every session's team.
type Participant struct {
	Name          string
	SystemMessage string
}

// Options configures a Manager. Store, Registry, and Client are required.
type Options struct {
	Store        store.Store
	Registry     *token.Registry
	Broadcaster  *Broadcaster
	Client       llm.Client
	Model        string
	Participants []Participant
	Logger       *slog.Logger
}

// Manager owns the set of sessions and the current-session pointer. Exactly
// one session is current at all times; lifecycle operations that displace a
// session with an active run first request graceful termination and then
// immediate cancellation through the token registry, in that order, so the
// run can observe the graceful stop before the hard cancel lands.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string // insertion order, for deterministic current-pointer fallback
	current  string

	store        store.Store
	registry     *token.Registry
	broadcaster  *Broadcaster
	client       llm.Client
	model        string
	participants []Participant
	logger       *slog.Logger

	runs sync.WaitGroup
}

// NewManager creates a manager, loads persisted sessions from the store, and
// creates a fresh session when none exist.
func NewManager(ctx context.Context, opts Options) (*Manager, error) {
	if opts.Store == nil || opts.Registry == nil || opts.Client == nil {
		return nil, fmt.Errorf("store, registry, and client are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	broadcaster := opts.Broadcaster
	if broadcaster == nil {
		broadcaster = NewBroadcaster(logger)
	}

	m := &Manager{
		sessions:     make(map[string]*Session),
		store:        opts.Store,
		registry:     opts.Registry,
		broadcaster:  broadcaster,
		client:       opts.Client,
		model:        opts.Model,
		participants: opts.Participants,
		logger:       logger.With("component", "sessions"),
	}

	if err := m.loadSessions(ctx); err != nil {
		return nil, err
	}

	if len(m.order) == 0 {
		if _, err := m.Create(ctx, "New Chat"); err != nil {
			return nil, fmt.Errorf("creating initial session: %w", err)
		}
	} else {
		m.current = m.order[0]
	}

	return m, nil
}

// loadSessions restores persisted sessions and their histories.
func (m *Manager) loadSessions(ctx context.Context) error {
	persisted, err := m.store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	for _, ps := range persisted {
		s := newSession(ps.ID, ps.Name)
		s.initialized = ps.IsInitialized
		s.initialMessage = ps.InitialMessage
		s.teamState = ps.TeamState

		messages, err := m.store.GetSessionMessages(ctx, ps.ID, 0)
		if err != nil {
			return fmt.Errorf("loading messages for session %s: %w", ps.ID, err)
		}
		for _, pm := range messages {
			s.messages = append(s.messages, Message{
				ID:        pm.ID,
				Source:    pm.Source,
				Content:   pm.Content,
				CreatedAt: pm.CreatedAt,
			})
		}

		m.sessions[ps.ID] = s
		m.order = append(m.order, ps.ID)
	}

	m.logger.Info("sessions loaded", "count", len(m.order))
	return nil
}

// Create makes a new session and sets it current. An empty name defaults to
// a placeholder.
func (m *Manager) Create(ctx context.Context, name string) (Snapshot, error) {
	if name == "" {
		name = "Untitled"
	}

	now := time.Now()
	s := newSession(uuid.New().String(), name)

	if err := m.store.CreateSession(ctx, &store.Session{
		ID:        s.id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return Snapshot{}, fmt.Errorf("persisting session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.order = append(m.order, s.id)
	m.current = s.id
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", s.id, "name", name)
	return s.Snapshot(), nil
}

// Switch makes the given session current. Switching to the current session
// is a no-op; switching to an unknown id is rejected with state unchanged.
// Any run active on the previously current session is terminated and then
// cancelled before the pointer moves.
func (m *Manager) Switch(id string) error {
	m.mu.Lock()
	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		m.logger.Error("cannot switch to non-existent session", "session_id", id)
		return ErrUnknownSession
	}
	if id == m.current {
		m.mu.Unlock()
		return nil
	}
	previous := m.current
	m.current = id
	m.mu.Unlock()

	// Graceful stop first, then hard cancel, so the run can observe
	// termination at its next checkpoint before the stream unwinds.
	if previous != "" {
		m.registry.Terminate(previous)
		m.registry.Cancel(previous)
	}

	m.logger.Debug("switched session", "from", previous, "to", id)
	return nil
}

// Delete removes a session, stopping any active run first. If the deleted
// session was current, another session becomes current, or a fresh one is
// created when none remain — exactly one session is current afterward.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		m.logger.Error("cannot delete non-existent session", "session_id", id)
		return ErrUnknownSession
	}
	m.mu.Unlock()

	// Stop the run before touching state: terminate, then cancel, then
	// drop the handles so late driver cleanup can't signal a stale run.
	m.registry.Terminate(id)
	m.registry.Cancel(id)
	m.registry.Remove(id)

	if err := m.store.DeleteSession(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}

	m.mu.Lock()
	delete(m.sessions, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	wasCurrent := m.current == id
	if wasCurrent {
		m.current = ""
		if len(m.order) > 0 {
			m.current = m.order[0]
		}
	}
	needFresh := wasCurrent && m.current == ""
	m.mu.Unlock()

	if needFresh {
		if _, err := m.Create(ctx, "New Chat"); err != nil {
			return err
		}
	}

	m.logger.Info("session deleted", "session_id", id)
	return nil
}

// Submit routes user input to the current session. On an uninitialized
// session (or one with no active run) it starts a driver run with the text
// as the opening topic; otherwise it fills the session's mailbox for the
// driver's input callback to consume. The mailbox holds at most one message:
// a second submit before consumption overwrites the first.
func (m *Manager) Submit(ctx context.Context, text string) error {
	s := m.currentSession()
	if s == nil {
		return ErrUnknownSession
	}

	snap := s.Snapshot()
	if snap.IsInitialized && text == "" {
		// Ignore empty messages mid-conversation; an empty first submit
		// still kicks off with the default topic.
		return nil
	}

	if s.isRunning() {
		s.putMailbox(text)
		m.logger.Debug("message queued", "session_id", s.id)
		return nil
	}

	topic := text
	if topic == "" {
		topic = defaultTopic
	}

	if s.markInitialized(topic) {
		if err := m.store.UpdateSession(ctx, &store.Session{
			ID:             s.id,
			Name:           snap.Name,
			IsInitialized:  true,
			InitialMessage: topic,
		}); err != nil {
			return fmt.Errorf("persisting session init: %w", err)
		}
	}

	if !s.tryStartRun() {
		// Lost a race with another submit; fall back to the mailbox.
		s.putMailbox(text)
		return nil
	}

	m.runs.Add(1)
	go func() {
		defer m.runs.Done()
		m.runConversation(s, topic)
	}()

	return nil
}

// Broadcaster returns the update broadcaster for streaming consumers.
func (m *Manager) Broadcaster() *Broadcaster {
	return m.broadcaster
}

// Current returns a snapshot of the current session.
func (m *Manager) Current() Snapshot {
	s := m.currentSession()
	if s == nil {
		return Snapshot{}
	}
	return s.Snapshot()
}

// CurrentID returns the current session's id.
func (m *Manager) CurrentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Sessions returns snapshots of all sessions in creation order.
func (m *Manager) Sessions() []Snapshot {
	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	sessions := m.sessions
	snaps := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := sessions[id]; ok {
			snaps = append(snaps, s)
		}
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Snapshot())
	}
	return out
}

// Session returns a snapshot of the given session.
func (m *Manager) Session(id string) (Snapshot, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrUnknownSession
	}
	return s.Snapshot(), nil
}

// Close stops all active runs and waits for their drivers to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.Unlock()

	for _, id := range ids {
		m.registry.Terminate(id)
		m.registry.Cancel(id)
	}
	m.runs.Wait()
}

// currentSession returns the current session pointer, or nil.
func (m *Manager) currentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[m.current]
}
