// ABOUTME: Registry mapping session ids to live run-control handles
// ABOUTME: Keeps non-serializable cancellation/termination handles out of session state

package token

import (
	"log/slog"
	"sync"

	"github.com/2389/parley/internal/team"
)

// Registry stores the cancellation token and termination condition for each
// session's in-flight run, keyed by session id. Session state is persisted,
// run handles are not; lifecycle operations (switch, delete) reach running
// work through this registry instead of holding handles themselves.
//
// Every operation is safe to call concurrently and every operation on an
// unknown session id is a no-op, never an error: "absent" is the normal state
// for a session with no active run.
type Registry struct {
	mu           sync.Mutex
	tokens       map[string]*team.CancellationToken
	terminations map[string]*team.ExternalTermination
	logger       *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tokens:       make(map[string]*team.CancellationToken),
		terminations: make(map[string]*team.ExternalTermination),
		logger:       logger.With("component", "token-registry"),
	}
}

// StoreToken registers the cancellation token for a session's run,
// overwriting any previous entry. Last write wins.
func (r *Registry) StoreToken(sessionID string, token *team.CancellationToken) {
	r.mu.Lock()
	r.tokens[sessionID] = token
	r.mu.Unlock()
	r.logger.Debug("stored cancellation token", "session_id", sessionID)
}

// StoreTermination registers the termination condition for a session's run,
// overwriting any previous entry.
func (r *Registry) StoreTermination(sessionID string, termination *team.ExternalTermination) {
	r.mu.Lock()
	r.terminations[sessionID] = termination
	r.mu.Unlock()
	r.logger.Debug("stored termination condition", "session_id", sessionID)
}

// Token returns the cancellation token for a session, or nil when the session
// has no active run.
func (r *Registry) Token(sessionID string) *team.CancellationToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[sessionID]
}

// Termination returns the termination condition for a session, or nil.
func (r *Registry) Termination(sessionID string) *team.ExternalTermination {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminations[sessionID]
}

// Cancel fires the session's cancellation token. Reports whether a token was
// registered; a missing token is a safe no-op.
func (r *Registry) Cancel(sessionID string) bool {
	token := r.Token(sessionID)
	if token == nil {
		return false
	}
	token.Cancel()
	r.logger.Debug("cancelled session run", "session_id", sessionID)
	return true
}

// Terminate signals the session's termination condition. Reports whether a
// condition was registered; a missing condition is a safe no-op.
func (r *Registry) Terminate(sessionID string) bool {
	termination := r.Termination(sessionID)
	if termination == nil {
		return false
	}
	termination.Set()
	r.logger.Debug("terminated session run", "session_id", sessionID)
	return true
}

// Remove discards both handles for a session. Idempotent; after removal,
// Cancel and Terminate on the id revert to no-ops.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.tokens, sessionID)
	delete(r.terminations, sessionID)
	r.mu.Unlock()
	r.logger.Debug("removed run handles", "session_id", sessionID)
}
