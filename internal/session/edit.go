package session

import (
	"context"

	"go.uber.org/zap"

	"gridsync-ws/internal/protocol"
)

// HandleInsert applies an admitted insert{} from clientID and, on
// success, broadcasts the rewritten insert followed by an acquire_lock.
// Out-of-bounds cells and non-admitted writers are silently dropped: no
// mutation, no broadcast.
func (s *Session) HandleInsert(clientID uint64, op protocol.Insert) {
	cell, ok := s.Grid.Cell(op.Cell.Row, op.Cell.Col)
	if !ok {
		return
	}
	if !cell.TryInsert(clientID, int(op.Index), op.Text, s.lockSeconds) {
		return
	}
	s.publishMutationThenAcquire(clientID, op.Cell, func() ([]byte, error) {
		return protocol.EncodeInsert(clientID, op.Cell, op.Index, op.Text)
	})
}

// HandleDelete applies an admitted delete{} from clientID.
func (s *Session) HandleDelete(clientID uint64, op protocol.Delete) {
	cell, ok := s.Grid.Cell(op.Cell.Row, op.Cell.Col)
	if !ok {
		return
	}
	if !cell.TryDelete(clientID, int(op.Start), int(op.End), s.lockSeconds) {
		return
	}
	s.publishMutationThenAcquire(clientID, op.Cell, func() ([]byte, error) {
		return protocol.EncodeDelete(clientID, op.Cell, op.Start, op.End)
	})
}

// HandleReplace applies an admitted replace{} from clientID.
func (s *Session) HandleReplace(clientID uint64, op protocol.Replace) {
	cell, ok := s.Grid.Cell(op.Cell.Row, op.Cell.Col)
	if !ok {
		return
	}
	if !cell.TryReplace(clientID, int(op.Start), int(op.End), op.Text, s.lockSeconds) {
		return
	}
	s.publishMutationThenAcquire(clientID, op.Cell, func() ([]byte, error) {
		return protocol.EncodeReplace(clientID, op.Cell, op.Start, op.End, op.Text)
	})
}

// publishMutationThenAcquire publishes the mutation event, then the
// acquire_lock event, in that order: the operation first, then the
// lock acquisition it implies.
func (s *Session) publishMutationThenAcquire(clientID uint64, cell protocol.CellPos, encodeOp func() ([]byte, error)) {
	opPayload, err := encodeOp()
	if err != nil {
		s.logger.Error("encode mutation event failed", zap.Error(err))
		return
	}
	s.Hub.Publish(opPayload)

	lockPayload, err := protocol.EncodeAcquireLock(clientID, cell)
	if err != nil {
		s.logger.Error("encode acquire_lock event failed", zap.Error(err))
		return
	}
	s.Hub.Publish(lockPayload)
}

// HandleInsertRows applies a structural row insertion. The in-memory
// grid mutation and the durable writes are not performed atomically: a
// storage failure partway through is logged and does not roll back the
// in-memory change or stop the remaining statements.
func (s *Session) HandleInsertRows(ctx context.Context, clientID uint64, op protocol.InsertRows) {
	height := s.Grid.Height()
	if op.InsertionIndex > uint64(height) {
		return
	}
	width := s.Grid.Width()
	if !s.Grid.InsertRows(int32(op.InsertionIndex), int32(op.NumRows)) {
		return
	}

	if err := s.storage.UpdateHeight(ctx, s.ID, int32(op.NumRows)); err != nil {
		s.logger.Error("insert_rows: update height failed", zap.Int64("table_id", s.ID), zap.Error(err))
		s.storageWriteError()
	}
	if err := s.storage.ShiftRowNumbers(ctx, s.ID, int32(op.InsertionIndex), int32(op.NumRows)); err != nil {
		s.logger.Error("insert_rows: shift row numbers failed", zap.Int64("table_id", s.ID), zap.Error(err))
		s.storageWriteError()
	}
	for i := uint64(0); i < op.NumRows; i++ {
		row := int32(op.InsertionIndex) + int32(i)
		for col := int32(0); col < width; col++ {
			if err := s.storage.InsertCell(ctx, s.ID, row, col, ""); err != nil {
				s.logger.Error("insert_rows: insert cell failed",
					zap.Int64("table_id", s.ID), zap.Int32("row", row), zap.Int32("col", col), zap.Error(err))
				s.storageWriteError()
			}
		}
	}

	payload, err := protocol.EncodeInsertRows(clientID, op.InsertionIndex, op.NumRows)
	if err != nil {
		s.logger.Error("encode insert_rows event failed", zap.Error(err))
		return
	}
	s.Hub.Publish(payload)
}

func (s *Session) storageWriteError() {
	if s.metrics != nil {
		s.metrics.Storage.WriteErrors.Inc()
	}
}

// Snapshot builds the row-major Init view of the grid, reading each
// cell under its own critical section.
func (s *Session) Snapshot() [][]protocol.CellView {
	rows := s.Grid.Rows()
	out := make([][]protocol.CellView, len(rows))
	for r, line := range rows {
		view := make([]protocol.CellView, len(line))
		for c, cell := range line {
			text, owner := cell.Snapshot()
			view[c] = protocol.CellView{Text: text, OwnerID: owner}
		}
		out[r] = view
	}
	return out
}
