package domain

import "context"

// BookCache stores the latest top of book per exchange for read-side
// consumers (the HTTP status API); the decision loop never reads it.
type BookCache interface {
	SetTop(ctx context.Context, exchange Exchange, update MarketUpdate) error
	GetTop(ctx context.Context, exchange Exchange) (MarketUpdate, error)
}
