// Package transport implements the WebSocket upgrade and the per-
// connection state machine.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gridsync-ws/internal/config"
	"gridsync-ws/internal/metrics"
	"gridsync-ws/internal/session"
)

// Server owns the HTTP listener that serves the WebSocket upgrade
// endpoint, the health check, and (optionally) metrics.
type Server struct {
	cfg       config.Config
	logger    *zap.Logger
	registry  *session.Registry
	allocator *session.Allocator
	metrics   *metrics.Registry

	instanceID uuid.UUID
	httpServer *http.Server
	connCtx    context.Context
}

// NewServer wires a transport Server against an already-constructed
// session registry and client id allocator. Each process gets a random
// instance id, stamped into every log line and the health response, so
// log aggregation can tell two restarts of the same deployment apart.
func NewServer(cfg config.Config, logger *zap.Logger, registry *session.Registry, allocator *session.Allocator, metricsRegistry *metrics.Registry) *Server {
	instanceID := uuid.New()
	return &Server{
		cfg:        cfg,
		logger:     logger.With(zap.String("instance_id", instanceID.String())),
		registry:   registry,
		allocator:  allocator,
		metrics:    metricsRegistry,
		instanceID: instanceID,
	}
}

// Start begins listening for HTTP/WebSocket connections. It returns once
// the listener is bound; serving happens in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	// Connections must outlive any single HTTP request's context (the
	// stdlib cancels that the moment handleWebSocket returns), so every
	// connection goroutine is parented on the server's own lifetime
	// instead of r.Context().
	s.connCtx = ctx

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{table_id}", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Metrics.Endpoint, s.metrics.Handler())
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.Info("transport listening", zap.String("addr", addr))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("transport shutdown error", zap.Error(err))
		}
	}()

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"healthy","instance_id":%q}`, s.instanceID.String())
}

// handleWebSocket resolves /ws/{table_id}, opens (or materializes) the
// session, and only then upgrades the connection — an unknown table id
// gets a plain 404 and never reaches the WebSocket handshake.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tableID, err := strconv.ParseInt(r.PathValue("table_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid table id", http.StatusBadRequest)
		return
	}

	sess, ok := s.registry.Open(r.Context(), tableID)
	if !ok {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Int64("table_id", tableID), zap.Error(err))
		return
	}

	s.metrics.Connections.Active.Inc()
	go func() {
		defer s.metrics.Connections.Active.Dec()
		handleConnection(s.connCtx, conn, sess, s.allocator, s.logger)
	}()
}
