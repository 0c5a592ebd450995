package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gridsync-ws/internal/config"
	"gridsync-ws/internal/metrics"
	"gridsync-ws/internal/storage"
	"gridsync-ws/internal/tablegrid"
)

// Registry is the process-wide mapping from table id to Session.
// Sessions are retained for the process's lifetime once loaded; there is
// no eviction.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	store   storage.Gateway
	cfg     config.SessionConfig
	logger  *zap.Logger
	metrics *metrics.Registry

	sweepCtx context.Context
}

// NewRegistry creates an empty registry. sweepCtx bounds the lifetime of
// every sweeper started for sessions this registry materializes —
// cancelling it (on process shutdown) stops every sweeper.
func NewRegistry(sweepCtx context.Context, store storage.Gateway, cfg config.SessionConfig, logger *zap.Logger, metricsRegistry *metrics.Registry) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		store:    store,
		cfg:      cfg,
		logger:   logger,
		metrics:  metricsRegistry,
		sweepCtx: sweepCtx,
	}
}

// Open returns the session for tableID, materializing it from storage on
// first access. The whole lookup-or-materialize sequence runs under the
// registry's single mutex, so two concurrent opens for a never-before-
// seen table id produce exactly one pair of storage loads. ok is false
// if the table id is absent from storage or the load otherwise fails.
func (r *Registry) Open(ctx context.Context, tableID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[tableID]; ok {
		return sess, true
	}

	width, height, err := r.store.LoadDims(ctx, tableID)
	if err != nil {
		r.logger.Warn("table dims load failed", zap.Int64("table_id", tableID), zap.Error(err))
		return nil, false
	}

	grid := tablegrid.NewGrid(width, height)
	cells, err := r.store.LoadCells(ctx, tableID)
	if err != nil {
		r.logger.Warn("table cells load failed", zap.Int64("table_id", tableID), zap.Error(err))
		return nil, false
	}
	for _, cr := range cells {
		if cell, ok := grid.Cell(cr.Row, cr.Col); ok {
			cell.SetText(cr.Text)
		}
	}

	hub := NewHub(r.cfg.HubBufferSize, r.metrics)
	sess := newSession(tableID, grid, hub, r.store, r.cfg, r.logger, r.metrics)
	sess.StartSweeper(r.sweepCtx)

	r.sessions[tableID] = sess
	if r.metrics != nil {
		r.metrics.Sessions.Active.Inc()
	}
	return sess, true
}
