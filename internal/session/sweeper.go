package session

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"gridsync-ws/internal/protocol"
)

// StartSweeper launches the session's lock sweeper if one is not already
// running. At most one sweeper task runs per session. It runs until ctx
// is cancelled.
func (s *Session) StartSweeper(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.sweeperStarted, 0, 1) {
		return
	}
	go s.runSweeper(ctx)
}

func (s *Session) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce walks the grid row-major once, decrementing or releasing
// every live lock. It never holds more than one cell's critical section
// at a time, so it never blocks a writer for longer than that.
func (s *Session) sweepOnce(ctx context.Context) {
	rows := s.Grid.Rows()
	for r, line := range rows {
		for c, cell := range line {
			released, text := cell.Tick(s.lockReleaseBelow)
			if !released {
				continue
			}
			s.writebackAndRelease(ctx, int32(r), int32(c), text)
		}
	}
}

func (s *Session) writebackAndRelease(ctx context.Context, row, col int32, text string) {
	// A failed writeback still releases the lock and emits the release
	// event; in-memory text stays authoritative until the next edit or
	// sweep.
	if err := s.storage.UpdateCell(ctx, s.ID, row, col, text); err != nil {
		s.logger.Error("sweeper writeback failed",
			zap.Int64("table_id", s.ID),
			zap.Int32("row", row),
			zap.Int32("col", col),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.Storage.WritebackErrors.Inc()
		}
	}

	payload, err := protocol.EncodeReleaseLock(protocol.CellPos{Row: row, Col: col})
	if err != nil {
		s.logger.Error("encode release_lock failed", zap.Error(err))
		return
	}
	s.Hub.Publish(payload)
	if s.metrics != nil {
		s.metrics.Sessions.LockSweeps.Inc()
	}
}
