// Package session owns chat sessions, their lifecycle, and the conversation
// driver that runs each group chat.
//
// # Overview
//
// A Session is one group conversation: an ordered message history, an
// initialization flag, a processing flag, and a single-slot mailbox for the
// next user message. The Manager owns the set of sessions and the pointer to
// the current one; exactly one session is current at all times.
//
// # Manager
//
// The Manager coordinates session operations:
//
//	mgr, err := session.NewManager(ctx, session.Options{...})
//
// Key operations:
//
//   - Create(ctx, name): New session, becomes current
//   - Switch(id): Move the current pointer; stops the displaced run
//   - Delete(ctx, id): Remove a session; another becomes current
//   - Submit(ctx, text): Route user input to the current session
//
// Switch and Delete stop an in-flight run by requesting graceful
// termination first and immediate cancellation second, through the token
// registry. Both stop signals always fire in that order.
//
// # Conversation Driver
//
// Submit on a session with no active run starts a driver goroutine. The
// driver builds a round-robin team from the configured participants plus a
// user proxy, streams the run's events, and relays them into the session:
//
//   - Participant messages are appended, persisted, and broadcast
//   - Input requests clear the processing flag (the UI unlocks)
//   - Errors become system-sourced messages; the driver never crashes
//
// When the stream closes the driver saves the team's continuation state, so
// the next run on the same session picks up where this one stopped.
//
// # Mailbox
//
// While a run waits for user input, Submit fills the session's mailbox
// instead of starting a run. The mailbox holds at most one message; a second
// submit before the driver consumes it overwrites the first. A notify
// channel wakes the waiting input callback as soon as a message lands.
//
// # Broadcasting
//
// The Broadcaster fans session updates out to subscribers (message appended,
// processing changed, run ended). The web layer's SSE handler is the main
// consumer.
package session
