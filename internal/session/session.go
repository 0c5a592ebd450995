// Package session implements the in-memory collaboration engine: the
// per-table session, its broadcast hub, its lock sweeper, the session
// registry that materializes sessions from storage, and the edit state
// machine that ties cell mutations to the broadcast stream.
package session

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"gridsync-ws/internal/config"
	"gridsync-ws/internal/metrics"
	"gridsync-ws/internal/storage"
	"gridsync-ws/internal/tablegrid"
)

// Session is the in-memory representation of one table currently being
// served: a grid of cells, a subscriber count, and a broadcast hub.
type Session struct {
	ID   int64
	Grid *tablegrid.Grid
	Hub  *Hub

	storage storage.Gateway
	logger  *zap.Logger
	metrics *metrics.Registry

	lockSeconds      uint32
	lockReleaseBelow uint32
	sweepInterval    time.Duration

	subscriberCount int32
	sweeperStarted  int32
}

func newSession(id int64, grid *tablegrid.Grid, hub *Hub, store storage.Gateway, cfg config.SessionConfig, logger *zap.Logger, metricsRegistry *metrics.Registry) *Session {
	releaseBelow := cfg.LockReleaseBelow
	if releaseBelow == 0 {
		releaseBelow = 2
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = time.Second
	}
	return &Session{
		ID:               id,
		Grid:             grid,
		Hub:              hub,
		storage:          store,
		logger:           logger,
		metrics:          metricsRegistry,
		lockSeconds:      cfg.LockSeconds,
		lockReleaseBelow: releaseBelow,
		sweepInterval:    sweep,
	}
}

// IncSubscribers bumps the subscriber count on connection attach.
func (s *Session) IncSubscribers() int32 {
	return atomic.AddInt32(&s.subscriberCount, 1)
}

// DecSubscribers lowers the subscriber count on connection detach.
func (s *Session) DecSubscribers() int32 {
	return atomic.AddInt32(&s.subscriberCount, -1)
}

// SubscriberCount reads the current subscriber count.
func (s *Session) SubscriberCount() int32 {
	return atomic.LoadInt32(&s.subscriberCount)
}
