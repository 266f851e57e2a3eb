package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwalczyk/arbot/internal/domain"
)

// OrderLogStore persists outbound order commands to the order_log table.
type OrderLogStore struct {
	pool *pgxpool.Pool
}

func NewOrderLogStore(c *Client) *OrderLogStore {
	return &OrderLogStore{pool: c.Pool()}
}

// Insert journals one outbound command. A missing ID is assigned here.
func (s *OrderLogStore) Insert(ctx context.Context, entry domain.OrderLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO order_log
			(id, exchange, action, client_order_id, side, price, size, order_type, time_in_force, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q,
		entry.ID, string(entry.Exchange), entry.Action, entry.ClientOrderID,
		string(entry.Side), entry.Price, entry.Size, string(entry.Type),
		string(entry.TimeInForce), entry.Time,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert order log: %w", err)
	}
	return nil
}

// ListRecent returns the most recent commands, newest first.
func (s *OrderLogStore) ListRecent(ctx context.Context, limit int) ([]domain.OrderLogEntry, error) {
	const q = `
		SELECT id, exchange, action, client_order_id, side, price, size, order_type, time_in_force, created_at
		FROM order_log
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list order log: %w", err)
	}
	defer rows.Close()

	var entries []domain.OrderLogEntry
	for rows.Next() {
		var e domain.OrderLogEntry
		var exchange, side, orderType, tif string
		if err := rows.Scan(&e.ID, &exchange, &e.Action, &e.ClientOrderID,
			&side, &e.Price, &e.Size, &orderType, &tif, &e.Time); err != nil {
			return nil, fmt.Errorf("postgres: scan order log: %w", err)
		}
		e.Exchange = domain.Exchange(exchange)
		e.Side = domain.Side(side)
		e.Type = domain.OrderType(orderType)
		e.TimeInForce = domain.TimeInForce(tif)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate order log: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.OrderLogStore = (*OrderLogStore)(nil)
