// Package server exposes a Relay over the network.
//
// GET /ws upgrades to a WebSocket speaking a JSON frame protocol:
// subscribe, unsubscribe, reconnect, and heartbeat manage session
// attachment, and the *_respond frames resolve active prompts. Outbound
// traffic is the session's envelope stream plus heartbeat and error
// frames. One socket may attach to any number of sessions.
//
// A small admin API lives under /api/v1: session listing with metrics,
// per-session status, and teardown. /healthz reports liveness. The
// middleware chain covers request ids, logging, panic recovery, CORS,
// and optional bearer auth.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tailored-agentic-units/relay/relay"
)

// Server serves the WebSocket and HTTP admin surface of a Relay.
type Server struct {
	relay    *relay.Relay
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a Server for the given relay. The relay's lifecycle stays
// with the caller; closing the relay unblocks every connection's pumps.
func New(r *relay.Relay, cfg Config, logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		relay:  r,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
	s.httpSrv = &http.Server{Addr: cfg.Addr, Handler: s.Handler()}
	return s
}

// Handler builds the full route tree. Exposed separately so tests can
// serve it without binding a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(CORS(s.cfg.AllowedOrigins))
	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Use(Recovery(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(s.cfg.AuthToken))

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Get("/{sessionID}", s.handleGetSession)
			r.Delete("/{sessionID}", s.handleEndSession)
		})
	})

	return r
}

// Start listens and serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("relay server listening", slog.String("addr", s.cfg.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight HTTP
// requests. Open WebSocket connections are unblocked by closing the
// relay, which closes their subscriptions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("relay server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AuthToken != "" && !wsAuthorized(r, s.cfg.AuthToken) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	ws.SetReadLimit(s.cfg.ReadLimit)

	c := newConn(ws, s.relay, s.logger, s.cfg.WriteTimeout)
	s.logger.Debug("connection opened",
		slog.String("conn_id", c.id),
		slog.String("remote", r.RemoteAddr))
	c.run()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListSessions handles GET /api/v1/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.relay.Sessions()
	if sessions == nil {
		sessions = []relay.SessionStatus{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"metrics":  s.relay.Metrics(),
	})
}

// handleGetSession handles GET /api/v1/sessions/{sessionID}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	status, err := s.relay.Heartbeat(sessionID)
	if err != nil {
		if errors.Is(err, relay.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleEndSession handles DELETE /api/v1/sessions/{sessionID}
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	s.relay.EndSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// wsAuthorized accepts the shared token as either a bearer header or a
// token query parameter, since browser WebSocket clients cannot set
// headers.
func wsAuthorized(r *http.Request, token string) bool {
	if r.Header.Get("Authorization") == "Bearer "+token {
		return true
	}
	return r.URL.Query().Get("token") == token
}

// originChecker builds the upgrader's origin filter. An empty allow list
// accepts anything; otherwise only listed origins pass. Requests without
// an Origin header (non-browser clients) always pass.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
