// ABOUTME: Password login, signed session cookies, and CSRF protection
// ABOUTME: Auth is optional; with no password hash configured every route is open

package web

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "parley_session"

	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "parley_csrf"

	// SessionDuration is how long login sessions last
	SessionDuration = 7 * 24 * time.Hour
)

// authEnabled reports whether the password gate is configured.
func (s *Server) authEnabled() bool {
	return s.cfg.Auth.PasswordHash != ""
}

// requireAuth wraps a handler with the session cookie check. When auth is
// not configured the handler is served directly.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() {
			next(w, r)
			return
		}
		if err := s.verifySession(r); err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// verifySession checks the signed session cookie.
func (s *Server) verifySession(r *http.Request) error {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return fmt.Errorf("no session cookie")
	}

	_, err = jwt.ParseWithClaims(cookie.Value, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Auth.JWTSecret), nil
	})
	if err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	return nil
}

// createSession issues a signed session cookie.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "parley",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionDuration)),
	})

	signed, err := token.SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("signing session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionDuration.Seconds()),
	})
	return nil
}

// ensureCSRFToken generates a CSRF token cookie if not present and returns
// the token for embedding in forms.
func (s *Server) ensureCSRFToken(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		s.logger.Error("failed to generate CSRF token", "error", err)
		return ""
	}
	token := base64.URLEncoding.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// validateCSRF checks the CSRF token from form or header against the cookie.
func (s *Server) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}
	return formToken != "" && formToken == cookie.Value
}

// handleLoginPage renders the login form, or redirects home when auth is
// not configured.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderLoginPage(w, "", s.ensureCSRFToken(w, r))
}

// handleLogin checks the password and issues the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.renderLoginPage(w, "Invalid form data", s.ensureCSRFToken(w, r))
		return
	}
	if !s.validateCSRF(r) {
		s.renderLoginPage(w, "Invalid request, please try again", s.ensureCSRFToken(w, r))
		return
	}

	password := r.FormValue("password")
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.Auth.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login attempt", "remote", r.RemoteAddr)
		s.renderLoginPage(w, "Invalid password", s.ensureCSRFToken(w, r))
		return
	}

	if err := s.createSession(w, r); err != nil {
		s.logger.Error("failed to create session", "error", err)
		s.renderLoginPage(w, "An error occurred", s.ensureCSRFToken(w, r))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout clears the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
