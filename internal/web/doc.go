// ABOUTME: Package documentation for the web UI
// ABOUTME: Describes the chat interface served over HTTP or tsnet

// Package web serves the chat interface: a session sidebar, the message
// view, and a submit form, with server-sent events pushing live updates.
// Authentication is optional; when a password hash is configured, visitors
// log in once and carry a signed session cookie.
package web
