package transport

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"gridsync-ws/internal/protocol"
	"gridsync-ws/internal/session"
)

// handleConnection runs the state machine for one attached client:
// identify, subscribe, snapshot, run the inbound/outbound tasks
// concurrently, then detach.
func handleConnection(parent context.Context, conn net.Conn, sess *session.Session, allocator *session.Allocator, logger *zap.Logger) {
	defer conn.Close()

	clientID := allocator.Next()

	subID, events := sess.Hub.Subscribe()
	sess.IncSubscribers()
	defer func() {
		sess.Hub.Unsubscribe(subID)
		sess.DecSubscribers()
		logger.Info("connection detached", zap.Int64("table_id", sess.ID), zap.Uint64("client_id", clientID))
	}()

	initPayload, err := protocol.EncodeInit(clientID, sess.Snapshot())
	if err != nil {
		logger.Error("encode init failed", zap.Error(err))
		return
	}
	if err := wsutil.WriteServerMessage(conn, ws.OpText, initPayload); err != nil {
		logger.Debug("write init failed", zap.Uint64("client_id", clientID), zap.Error(err))
		return
	}

	connCtx, cancel := context.WithCancel(parent)
	defer cancel()

	inboundDone := make(chan struct{})
	outboundDone := make(chan struct{})
	go func() {
		defer close(inboundDone)
		inboundLoop(connCtx, conn, sess, clientID, logger)
	}()
	go func() {
		defer close(outboundDone)
		outboundLoop(connCtx, conn, events, logger)
	}()

	// The connection ends when either sub-task ends — e.g. outboundLoop
	// exits on a send failure. Closing the socket here is what unblocks
	// whichever side is still parked in a blocking read or write; without
	// it the survivor never notices connCtx was cancelled until the peer
	// itself hangs up.
	select {
	case <-inboundDone:
	case <-outboundDone:
	}
	cancel()
	conn.Close()
	<-inboundDone
	<-outboundDone
}

// outboundLoop forwards hub events to the socket until the connection
// ends or the subscription closes.
func outboundLoop(ctx context.Context, conn net.Conn, events <-chan []byte, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				return
			}
			if err := wsutil.WriteServerMessage(conn, ws.OpText, payload); err != nil {
				logger.Debug("write event failed", zap.Error(err))
				return
			}
		}
	}
}

// inboundLoop reads client frames and dispatches decodable edit
// messages until the connection ends.
func inboundLoop(ctx context.Context, conn net.Conn, sess *session.Session, clientID uint64, logger *zap.Logger) {
	reader := wsutil.NewReader(conn, ws.StateServerSide)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		head, err := reader.NextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("read frame error", zap.Uint64("client_id", clientID), zap.Error(err))
			}
			return
		}

		switch head.OpCode {
		case ws.OpClose:
			_ = wsutil.WriteServerMessage(conn, ws.OpClose, nil)
			return
		case ws.OpPing:
			if err := wsutil.WriteServerMessage(conn, ws.OpPong, nil); err != nil {
				logger.Debug("write pong failed", zap.Error(err))
				return
			}
		case ws.OpText, ws.OpBinary:
			payload := make([]byte, head.Length)
			if _, err := io.ReadFull(reader, payload); err != nil {
				logger.Debug("read frame payload failed", zap.Error(err))
				return
			}
			dispatch(ctx, sess, clientID, payload)
		default:
			if _, err := io.CopyN(io.Discard, reader, int64(head.Length)); err != nil {
				return
			}
		}
	}
}

// dispatch decodes one inbound frame and routes it to the session's edit
// state machine. Undecodable frames, and frames whose type is
// server-authored only (init/acquire_lock/release_lock) or unrecognized,
// are silently ignored.
func dispatch(ctx context.Context, sess *session.Session, clientID uint64, payload []byte) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		return
	}
	switch {
	case msg.Insert != nil:
		sess.HandleInsert(clientID, *msg.Insert)
	case msg.Delete != nil:
		sess.HandleDelete(clientID, *msg.Delete)
	case msg.Replace != nil:
		sess.HandleReplace(clientID, *msg.Replace)
	case msg.InsertRows != nil:
		sess.HandleInsertRows(ctx, clientID, *msg.InsertRows)
	}
}
