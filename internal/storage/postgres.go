package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGateway implements Gateway against a two-relation schema:
// tables(id, name, width, height) and
// table_cells(table_id, row_num, column_num, text).
//
// The pool is capped at MaxConns (default 1): a single mutex-guarded
// storage connection is the intended concurrency model, and a pgxpool
// with MaxConns=1 gives that same serialization guarantee through the
// driver instead of a hand-rolled mutex.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

// NewPostgresGateway connects to Postgres using dsn, capping the pool at
// maxConns connections.
func NewPostgresGateway(ctx context.Context, dsn string, maxConns int32) (*PostgresGateway, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse storage dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 1
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to storage: %w", err)
	}
	return &PostgresGateway{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (g *PostgresGateway) Close() {
	g.pool.Close()
}

func (g *PostgresGateway) LoadDims(ctx context.Context, tableID int64) (int32, int32, error) {
	var width, height int32
	err := g.pool.QueryRow(ctx, `SELECT width, height FROM tables WHERE id = $1`, tableID).Scan(&width, &height)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("load dims: %w", err)
	}
	return width, height, nil
}

func (g *PostgresGateway) LoadCells(ctx context.Context, tableID int64) ([]CellRow, error) {
	rows, err := g.pool.Query(ctx, `SELECT row_num, column_num, text FROM table_cells WHERE table_id = $1`, tableID)
	if err != nil {
		return nil, fmt.Errorf("load cells: %w", err)
	}
	defer rows.Close()

	var out []CellRow
	for rows.Next() {
		var cr CellRow
		if err := rows.Scan(&cr.Row, &cr.Col, &cr.Text); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (g *PostgresGateway) UpdateCell(ctx context.Context, tableID int64, row, col int32, text string) error {
	_, err := g.pool.Exec(ctx,
		`UPDATE table_cells SET text = $1 WHERE table_id = $2 AND row_num = $3 AND column_num = $4`,
		text, tableID, row, col)
	if err != nil {
		return fmt.Errorf("update cell: %w", err)
	}
	return nil
}

func (g *PostgresGateway) UpdateHeight(ctx context.Context, tableID int64, delta int32) error {
	_, err := g.pool.Exec(ctx, `UPDATE tables SET height = height + $1 WHERE id = $2`, delta, tableID)
	if err != nil {
		return fmt.Errorf("update height: %w", err)
	}
	return nil
}

// ShiftRowNumbers renumbers every row at or below fromRow in one bulk
// statement. With the unique constraint on (table_id, row_num,
// column_num) declared NOT DEFERRABLE, an overlapping shift can trip a
// transient unique violation mid-statement even though the final row
// numbering is conflict-free; declaring that constraint DEFERRABLE
// INITIALLY DEFERRED avoids it by checking uniqueness at commit instead
// of per-row.
func (g *PostgresGateway) ShiftRowNumbers(ctx context.Context, tableID int64, fromRow, by int32) error {
	_, err := g.pool.Exec(ctx,
		`UPDATE table_cells SET row_num = row_num + $1 WHERE table_id = $2 AND row_num >= $3`,
		by, tableID, fromRow)
	if err != nil {
		return fmt.Errorf("shift row numbers: %w", err)
	}
	return nil
}

func (g *PostgresGateway) InsertCell(ctx context.Context, tableID int64, row, col int32, text string) error {
	_, err := g.pool.Exec(ctx,
		`INSERT INTO table_cells (table_id, row_num, column_num, text) VALUES ($1, $2, $3, $4)`,
		tableID, row, col, text)
	if err != nil {
		return fmt.Errorf("insert cell: %w", err)
	}
	return nil
}
