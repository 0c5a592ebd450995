package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridsync-ws/internal/config"
	"gridsync-ws/internal/protocol"
	"gridsync-ws/internal/storage"
	"gridsync-ws/internal/tablegrid"
)

func newTestSession(store storage.Gateway) *Session {
	cfg := config.SessionConfig{
		HubBufferSize:    100,
		LockSeconds:      3,
		LockReleaseBelow: 2,
		SweepInterval:    time.Hour,
	}
	grid := tablegrid.NewGrid(3, 3)
	hub := NewHub(cfg.HubBufferSize, nil)
	return newSession(1, grid, hub, store, cfg, zap.NewNop(), nil)
}

func decodeType(t *testing.T, payload []byte) string {
	t.Helper()
	var head struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(payload, &head))
	return head.Type
}

func TestHandleInsertHappyPathBroadcastsOpThenAcquire(t *testing.T) {
	store := newFakeGateway()
	sess := newTestSession(store)
	cell, ok := sess.Grid.Cell(0, 0)
	require.True(t, ok)
	cell.SetText("Hello")

	_, events := sess.Hub.Subscribe()
	sess.HandleInsert(1, protocol.Insert{ClientID: 1, Cell: protocol.CellPos{Row: 0, Col: 0}, Index: 5, Text: ", World!"})

	opPayload := <-events
	assert.Equal(t, "insert", decodeType(t, opPayload))
	decoded, err := protocol.Decode(opPayload)
	require.NoError(t, err)
	require.NotNil(t, decoded.Insert)
	assert.Equal(t, uint64(1), decoded.Insert.ClientID, "client_id is rewritten to the requesting client")

	lockPayload := <-events
	assert.Equal(t, "acquire_lock", decodeType(t, lockPayload))

	text, owner := cell.Snapshot()
	assert.Equal(t, "Hello, World!", text)
	require.NotNil(t, owner)
	assert.Equal(t, uint64(1), *owner)
}

func TestHandleInsertRewritesClientIDOfImpersonator(t *testing.T) {
	store := newFakeGateway()
	sess := newTestSession(store)
	_, events := sess.Hub.Subscribe()

	// Client 1 sends the op but claims to be client 99; server must
	// rewrite client_id to the connection's actual id.
	sess.HandleInsert(1, protocol.Insert{ClientID: 99, Cell: protocol.CellPos{Row: 0, Col: 0}, Index: 0, Text: "x"})

	opPayload := <-events
	decoded, err := protocol.Decode(opPayload)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), decoded.Insert.ClientID)
}

func TestContentionDropsNonOwnerWrite(t *testing.T) {
	store := newFakeGateway()
	sess := newTestSession(store)
	_, events := sess.Hub.Subscribe()

	sess.HandleInsert(1, protocol.Insert{ClientID: 1, Cell: protocol.CellPos{Row: 0, Col: 0}, Index: 0, Text: "A's text"})
	<-events // insert
	<-events // acquire_lock

	// B attempts to write while A's lock is live: silently dropped.
	sess.HandleReplace(2, protocol.Replace{ClientID: 2, Cell: protocol.CellPos{Row: 0, Col: 0}, Start: 0, End: 1, Text: "B"})

	select {
	case v := <-events:
		t.Fatalf("unexpected broadcast from non-owner write: %s", v)
	case <-time.After(20 * time.Millisecond):
	}

	cell, _ := sess.Grid.Cell(0, 0)
	text, owner := cell.Snapshot()
	assert.Equal(t, "A's text", text)
	require.NotNil(t, owner)
	assert.Equal(t, uint64(1), *owner)

	// After the lock is released (simulating sweeper expiry), B retries
	// and succeeds.
	released, _ := cell.Tick(2)
	released, _ = cell.Tick(2)
	released, _ = cell.Tick(2)
	require.True(t, released)

	sess.HandleReplace(2, protocol.Replace{ClientID: 2, Cell: protocol.CellPos{Row: 0, Col: 0}, Start: 0, End: 8, Text: "B wins"})
	opPayload := <-events
	decoded, err := protocol.Decode(opPayload)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), decoded.Replace.ClientID)
}

func TestHandleInsertOutOfBoundsCellIsIgnored(t *testing.T) {
	store := newFakeGateway()
	sess := newTestSession(store)
	_, events := sess.Hub.Subscribe()

	sess.HandleInsert(1, protocol.Insert{ClientID: 1, Cell: protocol.CellPos{Row: 99, Col: 99}, Index: 0, Text: "x"})

	select {
	case v := <-events:
		t.Fatalf("unexpected broadcast for out-of-bounds cell: %s", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHandleInsertRowsGrowsGridAndBroadcastsOnce(t *testing.T) {
	store := newFakeGateway()
	sess := newTestSession(store)
	_, events := sess.Hub.Subscribe()

	sess.HandleInsertRows(context.Background(), 3, protocol.InsertRows{ClientID: 3, InsertionIndex: 1, NumRows: 2})

	assert.Equal(t, int32(5), sess.Grid.Height())

	payload := <-events
	assert.Equal(t, "insert_rows", decodeType(t, payload))
	decoded, err := protocol.Decode(payload)
	require.NoError(t, err)
	require.NotNil(t, decoded.InsertRows)
	assert.Equal(t, uint64(3), decoded.InsertRows.ClientID)

	select {
	case v := <-events:
		t.Fatalf("expected exactly one insert_rows broadcast, got extra: %s", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHandleInsertRowsOutOfBoundsIsIgnored(t *testing.T) {
	store := newFakeGateway()
	sess := newTestSession(store)
	_, events := sess.Hub.Subscribe()

	sess.HandleInsertRows(context.Background(), 1, protocol.InsertRows{ClientID: 1, InsertionIndex: 999, NumRows: 1})

	assert.Equal(t, int32(3), sess.Grid.Height())
	select {
	case v := <-events:
		t.Fatalf("unexpected broadcast: %s", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSweepOnceReleasesAndPersistsExpiredLocks(t *testing.T) {
	store := newFakeGateway()
	store.seedTable(1, 3, 3, nil)
	sess := newTestSession(store)
	_, events := sess.Hub.Subscribe()

	cell, _ := sess.Grid.Cell(1, 2)
	cell.SetText("dangling edit")
	require.True(t, cell.TryInsert(7, 13, "", 3)) // acquire lock, remaining=3

	sess.sweepOnce(context.Background())
	sess.sweepOnce(context.Background())
	_, owner := cell.Snapshot()
	require.NotNil(t, owner, "lock should still be live after 2 sweeps")

	sess.sweepOnce(context.Background())
	_, owner = cell.Snapshot()
	assert.Nil(t, owner, "lock must be released on the 3rd sweep")

	payload := <-events
	decoded, err := protocol.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeReleaseLock, decoded.Type)

	require.Len(t, store.updatedCells, 1)
	assert.Equal(t, storage.CellRow{Row: 1, Col: 2, Text: "dangling edit"}, store.updatedCells[0])
}

func TestSweepOnceContinuesAfterWritebackFailure(t *testing.T) {
	store := newFakeGateway()
	store.failUpdateCell = true
	sess := newTestSession(store)
	_, events := sess.Hub.Subscribe()

	cell, _ := sess.Grid.Cell(0, 0)
	require.True(t, cell.TryInsert(1, 0, "x", 3))

	sess.sweepOnce(context.Background())
	sess.sweepOnce(context.Background())
	sess.sweepOnce(context.Background())

	// Lock still released and event still emitted despite the storage
	// failure.
	_, owner := cell.Snapshot()
	assert.Nil(t, owner)
	payload := <-events
	assert.Equal(t, "release_lock", decodeType(t, payload))
}
