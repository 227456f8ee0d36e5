// Package store provides persistent storage for sessions and messages using
// SQLite.
//
// # Data Models
//
//   - Session: One chat session with its name, initialization state, and the
//     opaque team continuation blob
//   - Message: One history entry, append-only
//
// # SQLite Configuration
//
// The store uses SQLite (modernc.org/sqlite, no cgo) with WAL mode for
// concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Pragmas are set through the DSN so every pooled connection gets them.
// Deleting a session cascades to its messages.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateSession: Session ID already exists
//
// All methods accept context.Context for cancellation support.
package store
