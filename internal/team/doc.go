// ABOUTME: Package team implements the multi-agent conversation engine
// ABOUTME: Round-robin turn-taking over participants with streaming events

// Package team runs multi-agent group conversations. A RoundRobin team gives
// each participant a turn in order and streams every produced message as an
// Event. Runs stop gracefully when an ExternalTermination is set, or unwind
// immediately when a CancellationToken fires. Continuation state round-trips
// through SaveState/LoadState as an opaque blob.
package team
