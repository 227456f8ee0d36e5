// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides session/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them; an Exec
	// would only configure whichever connection it happened to run on.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			is_initialized INTEGER NOT NULL DEFAULT 0,
			initial_message TEXT NOT NULL DEFAULT '',
			team_state BLOB,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session_id
			ON messages(session_id);

		CREATE INDEX IF NOT EXISTS idx_messages_session_created
			ON messages(session_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession inserts a new session row
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, is_initialized, initial_message, team_state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Name, boolToInt(session.IsInitialized),
		session.InitialMessage, session.TeamState,
		session.CreatedAt.UTC(), session.UpdatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicateSession
		}
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSession returns a session by id, or ErrNotFound
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, is_initialized, initial_message, team_state, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListSessions returns all sessions ordered by creation time
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_initialized, initial_message, team_state, created_at, updated_at
		FROM sessions ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpdateSession updates a session's mutable fields (name, flags, initial message)
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *Session) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET name = ?, is_initialized = ?, initial_message = ?, updated_at = ?
		WHERE id = ?`,
		session.Name, boolToInt(session.IsInitialized),
		session.InitialMessage, time.Now().UTC(), session.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return requireRow(result)
}

// SaveTeamState writes the continuation blob for a session
func (s *SQLiteStore) SaveTeamState(ctx context.Context, sessionID string, state []byte) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET team_state = ?, updated_at = ? WHERE id = ?`,
		state, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("saving team state: %w", err)
	}
	return requireRow(result)
}

// DeleteSession removes a session and its messages
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return requireRow(result)
}

// SaveMessage appends a message to a session's history
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, source, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Source, msg.Content, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// GetSessionMessages returns a session's messages in insertion order
func (s *SQLiteStore) GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, source, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC, id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("getting messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Source, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner matches both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var session Session
	var initialized int
	err := row.Scan(&session.ID, &session.Name, &initialized,
		&session.InitialMessage, &session.TeamState,
		&session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	session.IsInitialized = initialized != 0
	return &session, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
