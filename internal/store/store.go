// ABOUTME: Store interface and data types for parley persistence
// ABOUTME: Defines Session, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateSession is returned when trying to create a session that already exists
var ErrDuplicateSession = errors.New("session already exists")

// Session is the persisted form of one chat session. TeamState is the opaque
// continuation blob handed back by the team engine; it is stored and returned
// verbatim.
type Session struct {
	ID             string
	Name           string
	IsInitialized  bool
	InitialMessage string
	TeamState      []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Message represents a single message within a session for history purposes
type Message struct {
	ID        string
	SessionID string
	Source    string
	Content   string
	CreatedAt time.Time
}

// Store defines the interface for session and message persistence
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id string) error

	// Continuation state (written separately so a state save at the end of a
	// run cannot clobber concurrent name/flag updates)
	SaveTeamState(ctx context.Context, sessionID string, state []byte) error

	// Messages (append-only history)
	SaveMessage(ctx context.Context, msg *Message) error
	GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}
