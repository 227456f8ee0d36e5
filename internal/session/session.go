// ABOUTME: Session data type with per-session locking and derived UI views
// ABOUTME: Holds the message list, init flag, processing flag, and the single-slot mailbox

package session

import (
	"sync"
	"time"
)

// Well-known message sources. Participants use their configured names.
const (
	SourceUser   = "user"
	SourceSystem = "system"
)

// Message is one entry in a session's history. Once appended it is never
// mutated; insertion order is display order.
type Message struct {
	ID        string
	Source    string
	Content   string
	CreatedAt time.Time
}

// Session is one chat conversation. All field access goes through methods
// that take the session's own lock, so the UI handlers and the driver task
// for this session never observe partial updates. Fields of different
// sessions are independent.
type Session struct {
	mu sync.Mutex

	id             string
	name           string
	messages       []Message
	initialized    bool
	initialMessage string
	teamState      []byte

	// mailbox is the single-slot holder for the next user message. Empty
	// string means no pending message; a second submit before consumption
	// overwrites (last write wins). notify carries at most one wake-up
	// token so a paused input wait unblocks without polling.
	mailbox string
	notify  chan struct{}

	// processing is true while a run is active and not paused for input.
	processing bool

	// running is true while a driver task exists for this session.
	running bool
}

// newSession creates an uninitialized session.
func newSession(id, name string) *Session {
	return &Session{id: id, name: name, notify: make(chan struct{}, 1)}
}

// ID returns the session's immutable identifier.
func (s *Session) ID() string { return s.id }

// Snapshot is a consistent, copy-safe view of a session for the UI layer.
type Snapshot struct {
	ID             string
	Name           string
	Messages       []Message
	IsInitialized  bool
	Processing     bool
	HasMessages    bool
	InitialMessage string

	// Derived UI strings, computed here so every frontend renders the same
	// affordances.
	InputPlaceholder string
	SubmitLabel      string
}

// Snapshot returns a point-in-time copy of the session's state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)

	snap := Snapshot{
		ID:             s.id,
		Name:           s.name,
		Messages:       messages,
		IsInitialized:  s.initialized,
		Processing:     s.processing,
		HasMessages:    len(messages) > 0,
		InitialMessage: s.initialMessage,
	}

	if s.initialized {
		snap.InputPlaceholder = "Message to group..."
		snap.SubmitLabel = "Send"
	} else {
		snap.InputPlaceholder = "Kick-off with the topic of interest"
		snap.SubmitLabel = "Submit Topic & Start Chat"
	}

	return snap
}

// appendMessage adds a message to the history.
func (s *Session) appendMessage(msg Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// putMailbox stores the next user message, overwriting any pending one, and
// wakes a waiting input loop. The value is stored before the signal, so a
// woken waiter always finds it.
func (s *Session) putMailbox(text string) {
	s.mu.Lock()
	s.mailbox = text
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// mailboxReady returns the wake-up channel for the input wait.
func (s *Session) mailboxReady() <-chan struct{} {
	return s.notify
}

// takeMailbox consumes the pending message, if any.
func (s *Session) takeMailbox() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mailbox == "" {
		return "", false
	}
	text := s.mailbox
	s.mailbox = ""
	return text, true
}

// setProcessing flips the processing flag and reports whether it changed.
func (s *Session) setProcessing(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing == v {
		return false
	}
	s.processing = v
	return true
}

// markInitialized records the opening topic on first submit. Returns false
// if the session was already initialized.
func (s *Session) markInitialized(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return false
	}
	s.initialized = true
	s.initialMessage = topic
	return true
}

// tryStartRun marks the session as having an active driver task. Returns
// false when a run is already active.
func (s *Session) tryStartRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// endRun clears the running and processing flags together. Terminal states
// of a run always pass through here.
func (s *Session) endRun() {
	s.mu.Lock()
	s.running = false
	s.processing = false
	s.mu.Unlock()
}

// isRunning reports whether a driver task is active for this session.
func (s *Session) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// setTeamState stores the continuation blob from a completed run.
func (s *Session) setTeamState(state []byte) {
	s.mu.Lock()
	s.teamState = state
	s.mu.Unlock()
}

// getTeamState returns the last saved continuation blob, or nil.
func (s *Session) getTeamState() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teamState
}
