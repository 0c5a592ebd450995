package session

import (
	"context"
	"errors"
	"sync"

	"gridsync-ws/internal/storage"
)

var errFakeStorage = errors.New("fake storage failure")

// fakeGateway is an in-memory storage.Gateway used to exercise the
// registry, sweeper and structural mutation paths without a real
// Postgres instance.
type fakeGateway struct {
	mu sync.Mutex

	dims  map[int64][2]int32 // tableID -> [width, height]
	cells map[int64][]storage.CellRow

	loadDimsCalls  int
	loadCellsCalls int
	updatedCells   []storage.CellRow
	failUpdateCell bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		dims:  make(map[int64][2]int32),
		cells: make(map[int64][]storage.CellRow),
	}
}

func (f *fakeGateway) seedTable(tableID int64, width, height int32, cells []storage.CellRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dims[tableID] = [2]int32{width, height}
	f.cells[tableID] = cells
}

func (f *fakeGateway) LoadDims(_ context.Context, tableID int64) (int32, int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadDimsCalls++
	dims, ok := f.dims[tableID]
	if !ok {
		return 0, 0, storage.ErrNotFound
	}
	return dims[0], dims[1], nil
}

func (f *fakeGateway) LoadCells(_ context.Context, tableID int64) ([]storage.CellRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCellsCalls++
	return f.cells[tableID], nil
}

func (f *fakeGateway) UpdateCell(_ context.Context, _ int64, row, col int32, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateCell {
		return errFakeStorage
	}
	f.updatedCells = append(f.updatedCells, storage.CellRow{Row: row, Col: col, Text: text})
	return nil
}

func (f *fakeGateway) UpdateHeight(_ context.Context, _ int64, _ int32) error { return nil }

func (f *fakeGateway) ShiftRowNumbers(_ context.Context, _ int64, _, _ int32) error { return nil }

func (f *fakeGateway) InsertCell(_ context.Context, _ int64, _, _ int32, _ string) error { return nil }
