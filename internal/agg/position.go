package agg

import (
	"log/slog"
	"sync"

	"github.com/mwalczyk/arbot/internal/domain"
)

// PositionAggregator merges every broker's balance stream into one
// venue-tagged broadcast and remembers the latest balance per currency per
// venue.
type PositionAggregator struct {
	fan    *Fanout[domain.CurrencyPosition]
	logger *slog.Logger

	mu     sync.RWMutex
	latest map[domain.Exchange]map[domain.Currency]float64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewPositionAggregator(brokers []domain.Broker, logger *slog.Logger) *PositionAggregator {
	a := &PositionAggregator{
		fan:    NewFanout[domain.CurrencyPosition](),
		logger: logger.With(slog.String("component", "pos_agg")),
		latest: make(map[domain.Exchange]map[domain.Currency]float64),
		done:   make(chan struct{}),
	}

	for _, b := range brokers {
		a.wg.Add(1)
		go a.relay(b)
	}
	return a
}

// Subscribe returns a stream of balance updates from all venues.
func (a *PositionAggregator) Subscribe() (<-chan domain.CurrencyPosition, func()) {
	return a.fan.Subscribe()
}

// Latest returns the last reported balance for a currency on a venue.
func (a *PositionAggregator) Latest(exchange domain.Exchange, currency domain.Currency) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byCurrency, ok := a.latest[exchange]
	if !ok {
		return 0, false
	}
	amount, ok := byCurrency[currency]
	return amount, ok
}

// Snapshot returns a copy of every venue's latest balances.
func (a *PositionAggregator) Snapshot() map[domain.Exchange]map[domain.Currency]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[domain.Exchange]map[domain.Currency]float64, len(a.latest))
	for exchange, byCurrency := range a.latest {
		copied := make(map[domain.Currency]float64, len(byCurrency))
		for c, amount := range byCurrency {
			copied[c] = amount
		}
		out[exchange] = copied
	}
	return out
}

// Close stops relaying and closes all subscriber channels.
func (a *PositionAggregator) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.fan.CloseAll()
	})
}

func (a *PositionAggregator) relay(b domain.Broker) {
	defer a.wg.Done()

	exchange := b.Exchange()
	for {
		select {
		case <-a.done:
			return
		case p, ok := <-b.Positions():
			if !ok {
				return
			}
			p.Exchange = exchange

			a.mu.Lock()
			if a.latest[exchange] == nil {
				a.latest[exchange] = make(map[domain.Currency]float64)
			}
			a.latest[exchange][p.Currency] = p.Amount
			a.mu.Unlock()

			a.fan.Publish(p)
		}
	}
}
