// Package server exposes the live transport: one websocket upgrade
// endpoint for broadcast subscribers plus health and metrics handlers.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/crypto-data/internal/hub"
	"github.com/rickgao/crypto-data/internal/version"
)

// Config holds server settings.
type Config struct {
	Addr        string
	MetricsPath string
}

// Server is the collector's HTTP surface.
type Server struct {
	cfg    Config
	hub    *hub.Hub
	logger *slog.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
	started    time.Time
}

// New creates a server bound to the given hub.
func New(cfg Config, h *hub.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		hub:    h,
		logger: logger,
		upgrader: websocket.Upgrader{
			// Viewers connect from arbitrary dashboard origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle(cfg.MetricsPath, promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// Start begins serving. It returns once the listener is running; serve
// errors other than graceful close are logged.
func (s *Server) Start(ctx context.Context) error {
	s.started = time.Now()

	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the listener down and disconnects all subscribers.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.CloseAll()
	s.logger.Info("server stopped")
	return err
}

// handleWS upgrades the connection, hands it to the hub, and drains
// inbound frames until the peer goes away. The transport is server-push
// only; inbound payloads are discarded.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := hub.NewWSConn(ws)
	s.hub.Connect(conn)

	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				s.hub.Disconnect(conn)
				return
			}
		}
	}()
}

// handleHealth reports liveness plus hub statistics.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.hub.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"version":     version.Version,
		"uptime":      time.Since(s.started).String(),
		"subscribers": st.Connections,
		"broadcasts":  st.Broadcasts,
	})
}
