// Package service contains background workers that run beside the engine.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

// writeTimeout bounds a single store or cache write.
const writeTimeout = 5 * time.Second

// Recorder journals outbound order commands, persists fills, and keeps the
// top-of-book cache current. It consumes the aggregator streams on a single
// goroutine; persistence failures are logged, never propagated back into the
// trading path.
type Recorder struct {
	commands <-chan domain.OrderLogEntry
	reports  <-chan domain.OrderStatusReport
	markets  <-chan domain.Market

	orderLog domain.OrderLogStore // nil disables journaling
	fills    domain.FillStore     // nil disables fill persistence
	cache    domain.BookCache     // nil disables the top cache

	// tifByOrder remembers each live order's time in force so fills can be
	// classified: IOC orders are hedges, GTC orders are resting legs.
	tifByOrder map[string]domain.TimeInForce

	logger *slog.Logger
}

func NewRecorder(
	commands <-chan domain.OrderLogEntry,
	reports <-chan domain.OrderStatusReport,
	markets <-chan domain.Market,
	orderLog domain.OrderLogStore,
	fills domain.FillStore,
	cache domain.BookCache,
	logger *slog.Logger,
) *Recorder {
	return &Recorder{
		commands:   commands,
		reports:    reports,
		markets:    markets,
		orderLog:   orderLog,
		fills:      fills,
		cache:      cache,
		tifByOrder: make(map[string]domain.TimeInForce),
		logger:     logger.With(slog.String("component", "recorder")),
	}
}

// Run consumes the streams until ctx is cancelled or all inputs close.
func (r *Recorder) Run(ctx context.Context) error {
	commands, reports, markets := r.commands, r.reports, r.markets
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-commands:
			if !ok {
				commands = nil
				break
			}
			r.onCommand(ctx, entry)
		case rpt, ok := <-reports:
			if !ok {
				reports = nil
				break
			}
			r.onReport(ctx, rpt)
		case m, ok := <-markets:
			if !ok {
				markets = nil
				break
			}
			r.onMarket(ctx, m)
		}
		if commands == nil && reports == nil && markets == nil {
			return nil
		}
	}
}

func (r *Recorder) onCommand(ctx context.Context, entry domain.OrderLogEntry) {
	if entry.Action == "new" || entry.Action == "replace" {
		r.tifByOrder[entry.ClientOrderID] = entry.TimeInForce
	}

	if r.orderLog == nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := r.orderLog.Insert(wctx, entry); err != nil {
		r.logger.Error("journal write failed",
			slog.String("action", entry.Action),
			slog.String("client_order_id", entry.ClientOrderID),
			slog.String("error", err.Error()))
	}
}

func (r *Recorder) onReport(ctx context.Context, rpt domain.OrderStatusReport) {
	if rpt.LastQuantity > 0 && r.fills != nil {
		fill := domain.Fill{
			Exchange:      rpt.Exchange,
			ClientOrderID: rpt.OrderID,
			Side:          rpt.Side,
			Price:         rpt.LastPrice,
			Size:          rpt.LastQuantity,
			Hedge:         r.tifByOrder[rpt.OrderID] == domain.TimeInForceIOC,
			Time:          rpt.Time,
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		if err := r.fills.Insert(wctx, fill); err != nil {
			r.logger.Error("fill write failed",
				slog.String("client_order_id", rpt.OrderID),
				slog.String("error", err.Error()))
		}
		cancel()
	}

	switch rpt.Status {
	case domain.OrderStatusComplete, domain.OrderStatusCancelled, domain.OrderStatusRejected:
		delete(r.tifByOrder, rpt.OrderID)
	}
}

func (r *Recorder) onMarket(ctx context.Context, m domain.Market) {
	if r.cache == nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := r.cache.SetTop(wctx, m.Exchange, m.Update); err != nil {
		r.logger.Warn("top cache write failed",
			slog.String("exchange", string(m.Exchange)),
			slog.String("error", err.Error()))
	}
}
