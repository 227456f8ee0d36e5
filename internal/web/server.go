// ABOUTME: HTTP server for the chat UI with optional tsnet listener
// ABOUTME: Wires routes, authentication, and graceful shutdown

package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/parley/internal/config"
	"github.com/2389/parley/internal/session"
)

// Server serves the chat UI over plain HTTP or a tsnet node.
type Server struct {
	manager *session.Manager
	cfg     *config.Config
	logger  *slog.Logger

	httpServer  *http.Server
	tsnetServer *tsnet.Server
}

// New creates a web server around a session manager.
func New(manager *session.Manager, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		manager: manager,
		cfg:     cfg,
		logger:  logger.With("component", "web"),
	}
}

// Routes registers all HTTP routes on the given mux.
func (s *Server) Routes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Chat routes
	mux.HandleFunc("GET /", s.requireAuth(s.handleIndex))
	mux.HandleFunc("POST /submit", s.requireAuth(s.handleSubmit))
	mux.HandleFunc("POST /sessions", s.requireAuth(s.handleCreateSession))
	mux.HandleFunc("POST /sessions/{id}/switch", s.requireAuth(s.handleSwitchSession))
	mux.HandleFunc("POST /sessions/{id}/delete", s.requireAuth(s.handleDeleteSession))
	mux.HandleFunc("GET /events", s.requireAuth(s.handleEvents))

	// HTMX partials
	mux.HandleFunc("GET /partials/sidebar", s.requireAuth(s.handleSidebar))
	mux.HandleFunc("GET /partials/messages", s.requireAuth(s.handleMessages))

	mux.HandleFunc("POST /logout", s.requireAuth(s.handleLogout))
}

// Start begins serving and blocks until ctx is cancelled or the listener
// fails. The listener comes from tsnet when Tailscale is enabled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	s.Routes(mux)

	ln, err := s.listen(ctx)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	s.logger.Info("web server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	}
}

// listen returns the server's listener, from tsnet or the plain network.
func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	if !s.cfg.Tailscale.Enabled {
		ln, err := net.Listen("tcp", s.cfg.Server.HTTPAddr)
		if err != nil {
			return nil, fmt.Errorf("listening on %s: %w", s.cfg.Server.HTTPAddr, err)
		}
		return ln, nil
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  s.cfg.Tailscale.Hostname,
		AuthKey:   s.cfg.Tailscale.AuthKey,
		Dir:       s.cfg.Tailscale.StateDir,
		Ephemeral: s.cfg.Tailscale.Ephemeral,
	}

	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("bringing up tailscale node: %w", err)
	}
	s.logger.Info("tailscale node up", "hostname", s.cfg.Tailscale.Hostname, "ips", status.TailscaleIPs)

	ln, err := s.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale node: %w", err)
	}
	return ln, nil
}

// Shutdown stops the HTTP server and the tsnet node.
func (s *Server) Shutdown() error {
	var firstErr error

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			firstErr = err
		}
		cancel()
	}

	if s.tsnetServer != nil {
		if err := s.tsnetServer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
