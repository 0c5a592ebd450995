// Package storage defines the storage gateway contract: the narrow set
// of operations the collaboration engine needs from the durable store,
// independent of which relational backend implements it.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by LoadDims when a table id has no durable
// record. Callers (the session registry) treat this the same as any
// other load failure: the table fails to materialize.
var ErrNotFound = errors.New("storage: table not found")

// CellRow is one persisted cell, as returned by LoadCells.
type CellRow struct {
	Row  int32
	Col  int32
	Text string
}

// Gateway is the durable store contract used by the session registry,
// the lock sweeper, and the structural mutation path. Implementations
// must serialize access themselves if the underlying driver requires it.
type Gateway interface {
	// LoadDims returns a table's width/height, or ErrNotFound.
	LoadDims(ctx context.Context, tableID int64) (width, height int32, err error)
	// LoadCells returns every persisted cell for a table.
	LoadCells(ctx context.Context, tableID int64) ([]CellRow, error)
	// UpdateCell persists one cell's text, called on lock expiry.
	UpdateCell(ctx context.Context, tableID int64, row, col int32, text string) error
	// UpdateHeight adjusts a table's stored height by delta rows.
	UpdateHeight(ctx context.Context, tableID int64, delta int32) error
	// ShiftRowNumbers renumbers every stored cell at or below fromRow.
	ShiftRowNumbers(ctx context.Context, tableID int64, fromRow, by int32) error
	// InsertCell persists one newly created empty cell.
	InsertCell(ctx context.Context, tableID int64, row, col int32, text string) error
}
