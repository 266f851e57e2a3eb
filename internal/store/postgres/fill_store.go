package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwalczyk/arbot/internal/domain"
)

// FillStore persists executions to the fills table.
type FillStore struct {
	pool *pgxpool.Pool
}

func NewFillStore(c *Client) *FillStore {
	return &FillStore{pool: c.Pool()}
}

// Insert records one execution. A missing ID is assigned here.
func (s *FillStore) Insert(ctx context.Context, fill domain.Fill) error {
	if fill.ID == "" {
		fill.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO fills
			(id, exchange, client_order_id, side, price, size, hedge, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		fill.ID, string(fill.Exchange), fill.ClientOrderID, string(fill.Side),
		fill.Price, fill.Size, fill.Hedge, fill.Time,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert fill: %w", err)
	}
	return nil
}

// ListBefore returns fills executed before cutoff, oldest first, capped at
// limit. This feeds the archiver.
func (s *FillStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Fill, error) {
	const q = `
		SELECT id, exchange, client_order_id, side, price, size, hedge, executed_at
		FROM fills
		WHERE executed_at < $1
		ORDER BY executed_at ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var exchange, side string
		if err := rows.Scan(&f.ID, &exchange, &f.ClientOrderID, &side,
			&f.Price, &f.Size, &f.Hedge, &f.Time); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Exchange = domain.Exchange(exchange)
		f.Side = domain.Side(side)
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate fills: %w", err)
	}
	return fills, nil
}

// DeleteBefore removes fills executed before cutoff and reports how many rows
// went away. Called by the archiver after a successful export.
func (s *FillStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fills WHERE executed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete fills: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.FillStore = (*FillStore)(nil)
