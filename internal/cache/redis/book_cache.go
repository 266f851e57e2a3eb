package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mwalczyk/arbot/internal/domain"
)

// BookCache implements domain.BookCache using one hash per venue.
//
// Key schema:
//
//	top:{exchange} - hash with fields "bid", "bid_size", "ask", "ask_size", "ts"
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func topKey(exchange domain.Exchange) string { return "top:" + string(exchange) }

// SetTop stores the latest top of book for a venue.
func (bc *BookCache) SetTop(ctx context.Context, exchange domain.Exchange, update domain.MarketUpdate) error {
	fields := map[string]interface{}{
		"bid":      strconv.FormatFloat(update.Bid.Price, 'f', -1, 64),
		"bid_size": strconv.FormatFloat(update.Bid.Size, 'f', -1, 64),
		"ask":      strconv.FormatFloat(update.Ask.Price, 'f', -1, 64),
		"ask_size": strconv.FormatFloat(update.Ask.Size, 'f', -1, 64),
		"ts":       strconv.FormatInt(update.Time.UnixNano(), 10),
	}

	if err := bc.rdb.HSet(ctx, topKey(exchange), fields).Err(); err != nil {
		return fmt.Errorf("redis: set top %s: %w", exchange, err)
	}
	return nil
}

// GetTop retrieves the latest top of book for a venue. It returns
// domain.ErrNotFound if nothing has been stored yet.
func (bc *BookCache) GetTop(ctx context.Context, exchange domain.Exchange) (domain.MarketUpdate, error) {
	vals, err := bc.rdb.HGetAll(ctx, topKey(exchange)).Result()
	if err != nil {
		return domain.MarketUpdate{}, fmt.Errorf("redis: get top %s: %w", exchange, err)
	}
	if len(vals) == 0 {
		return domain.MarketUpdate{}, domain.ErrNotFound
	}

	var update domain.MarketUpdate
	update.Bid.Price, _ = strconv.ParseFloat(vals["bid"], 64)
	update.Bid.Size, _ = strconv.ParseFloat(vals["bid_size"], 64)
	update.Ask.Price, _ = strconv.ParseFloat(vals["ask"], 64)
	update.Ask.Size, _ = strconv.ParseFloat(vals["ask_size"], 64)

	if tsStr, ok := vals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			update.Time = time.Unix(0, tsNano)
		}
	}

	return update, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
