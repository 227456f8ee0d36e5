// ABOUTME: Chat UI handlers for session lifecycle, submission, and live events
// ABOUTME: Partials are rendered server-side and swapped in by HTMX

package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/parley/internal/session"
)

// handleIndex renders the chat shell with the current session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	csrfToken := s.ensureCSRFToken(w, r)
	current := s.manager.Current()

	sidebar := s.sidebarData(current.ID)
	sidebar.CSRFToken = csrfToken

	data := chatPageData{
		Title:       "Parley",
		CSRFToken:   csrfToken,
		AuthEnabled: s.authEnabled(),
		Current:     newSessionView(current),
		Sidebar:     sidebar,
	}

	s.render(w, data, "templates/base.html", "templates/chat.html",
		"templates/partials/sidebar.html", "templates/partials/messages.html")
}

// handleSubmit routes the submitted text to the current session.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if !s.validateCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	if err := s.manager.Submit(r.Context(), r.FormValue("message")); err != nil {
		s.logger.Error("submit failed", "error", err)
		http.Error(w, "Submit failed", http.StatusInternalServerError)
		return
	}

	s.redirectOrRefresh(w, r)
}

// handleCreateSession creates a new session and makes it current.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if !s.validateCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	if _, err := s.manager.Create(r.Context(), r.FormValue("name")); err != nil {
		s.logger.Error("create session failed", "error", err)
		http.Error(w, "Create failed", http.StatusInternalServerError)
		return
	}

	s.redirectOrRefresh(w, r)
}

// handleSwitchSession makes the given session current.
func (s *Server) handleSwitchSession(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	if err := s.manager.Switch(r.PathValue("id")); err != nil {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}

	s.redirectOrRefresh(w, r)
}

// handleDeleteSession removes the given session.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	if err := s.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}

	s.redirectOrRefresh(w, r)
}

// handleSidebar returns the session list partial.
func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	data := s.sidebarData(s.manager.CurrentID())
	data.CSRFToken = s.ensureCSRFToken(w, r)
	s.render(w, data, "templates/partials/sidebar.html")
}

// handleMessages returns the message list partial for the current session.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	s.render(w, newSessionView(s.manager.Current()), "templates/partials/messages.html")
}

// handleEvents streams session updates as server-sent events. The client
// subscribes to the current session; a switch means reconnecting.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = s.manager.CurrentID()
	}
	if _, err := s.manager.Session(sessionID); err != nil {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	updates, subID := s.manager.Broadcaster().Subscribe(r.Context(), sessionID)
	defer s.manager.Broadcaster().Unsubscribe(sessionID, subID)

	fmt.Fprintf(w, "event: connected\ndata: {\"session_id\": %q}\n\n", sessionID)
	flusher.Flush()

	// Heartbeat comments keep intermediaries from closing the stream
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSSE(w, update); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE serializes one update as a named SSE event.
func writeSSE(w http.ResponseWriter, update *session.Update) error {
	var name string
	payload := map[string]any{"session_id": update.SessionID}

	switch update.Kind {
	case session.UpdateMessage:
		name = "message"
		payload["source"] = update.Message.Source
		payload["html"] = renderMarkdown(update.Message.Content)
	case session.UpdateStatus:
		name = "status"
		payload["processing"] = update.Processing
	case session.UpdateEnded:
		name = "ended"
	default:
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": len(s.manager.Sessions()),
	})
}

// redirectOrRefresh tells HTMX clients to refresh and browsers to go home.
func (s *Server) redirectOrRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderMarkdown converts message markdown to HTML for display.
func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		// Fall back to escaped plain text
		return template.HTMLEscapeString(content)
	}
	return buf.String()
}
