// ABOUTME: Template data types and rendering helpers for the chat UI
// ABOUTME: Loads templates from the embedded filesystem

package web

import (
	"html/template"
	"net/http"

	"github.com/2389/parley/internal/session"
)

// chatPageData holds data for the main chat shell.
type chatPageData struct {
	Title       string
	CSRFToken   string
	AuthEnabled bool
	Current     sessionView
	Sidebar     sidebarViewData
}

// sessionView is the render-ready form of a session snapshot.
type sessionView struct {
	ID               string
	Name             string
	Messages         []messageView
	IsInitialized    bool
	Processing       bool
	HasMessages      bool
	InputPlaceholder string
	SubmitLabel      string
}

// messageView is one rendered message.
type messageView struct {
	Source string
	IsUser bool
	HTML   template.HTML
}

// sidebarViewData holds the session list for the sidebar partial.
type sidebarViewData struct {
	CSRFToken string
	Sessions  []sessionItem
}

// sessionItem is one entry in the session sidebar.
type sessionItem struct {
	ID      string
	Name    string
	Active  bool
	Started bool
}

// loginData holds data for the login page.
type loginData struct {
	Title     string
	Error     string
	CSRFToken string
}

// newSessionView converts a snapshot for template rendering, converting
// message markdown to HTML.
func newSessionView(snap session.Snapshot) sessionView {
	view := sessionView{
		ID:               snap.ID,
		Name:             snap.Name,
		IsInitialized:    snap.IsInitialized,
		Processing:       snap.Processing,
		HasMessages:      snap.HasMessages,
		InputPlaceholder: snap.InputPlaceholder,
		SubmitLabel:      snap.SubmitLabel,
	}
	for _, msg := range snap.Messages {
		view.Messages = append(view.Messages, messageView{
			Source: msg.Source,
			IsUser: msg.Source == session.SourceUser,
			HTML:   template.HTML(renderMarkdown(msg.Content)),
		})
	}
	return view
}

// sidebarData builds the sidebar view for all sessions.
func (s *Server) sidebarData(activeID string) sidebarViewData {
	var data sidebarViewData
	for _, snap := range s.manager.Sessions() {
		data.Sessions = append(data.Sessions, sessionItem{
			ID:      snap.ID,
			Name:    snap.Name,
			Active:  snap.ID == activeID,
			Started: snap.IsInitialized,
		})
	}
	return data
}

// render executes the named templates with the given data.
func (s *Server) render(w http.ResponseWriter, data any, files ...string) {
	tmpl, err := template.ParseFS(templateFS, files...)
	if err != nil {
		s.logger.Error("failed to parse templates", "error", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render template", "error", err)
	}
}

// renderLoginPage renders the login form with an optional error.
func (s *Server) renderLoginPage(w http.ResponseWriter, errMsg, csrfToken string) {
	s.render(w, loginData{
		Title:     "Sign in",
		Error:     errMsg,
		CSRFToken: csrfToken,
	}, "templates/login.html")
}
