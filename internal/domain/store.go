package domain

import (
	"context"
	"time"
)

// OrderLogEntry records one outbound order command for the audit journal.
type OrderLogEntry struct {
	ID            string
	Exchange      Exchange
	Action        string // "new", "cancel", "replace"
	ClientOrderID string
	Side          Side
	Price         float64
	Size          float64
	Type          OrderType
	TimeInForce   TimeInForce
	Time          time.Time
}

// Fill records one execution: either a rest-leg fill or the hedge fired
// against it.
type Fill struct {
	ID            string
	Exchange      Exchange
	ClientOrderID string
	Side          Side
	Price         float64
	Size          float64
	Hedge         bool
	Time          time.Time
}

// OrderLogStore persists the outbound order journal.
type OrderLogStore interface {
	Insert(ctx context.Context, entry OrderLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]OrderLogEntry, error)
}

// FillStore persists executions. ListBefore/DeleteBefore support the
// archiver, which exports aged rows to blob storage and prunes them.
type FillStore interface {
	Insert(ctx context.Context, fill Fill) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]Fill, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
