// Package token maps session ids to the live stop handles of their runs.
//
// A running conversation exposes two handles: an ExternalTermination for
// graceful stop at the next turn boundary, and a CancellationToken for
// immediate unwinding. Neither survives serialization, so they live here,
// outside the session state, keyed by session id.
//
// All operations are safe for concurrent use. Storing under an existing id
// replaces the handle (last write wins); cancelling or terminating an
// unknown id is a no-op that reports false. Remove drops both handles
// without firing them and is idempotent.
package token
