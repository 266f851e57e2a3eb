package agg

import (
	"log/slog"
	"sync"

	"github.com/mwalczyk/arbot/internal/domain"
)

// MarketDataAggregator merges every broker's market-data stream into one
// venue-tagged broadcast. Relaying starts at construction.
type MarketDataAggregator struct {
	fan    *Fanout[domain.Market]
	logger *slog.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewMarketDataAggregator(brokers []domain.Broker, logger *slog.Logger) *MarketDataAggregator {
	a := &MarketDataAggregator{
		fan:    NewFanout[domain.Market](),
		logger: logger.With(slog.String("component", "md_agg")),
		done:   make(chan struct{}),
	}

	for _, b := range brokers {
		a.wg.Add(1)
		go a.relay(b)
	}
	return a
}

// Subscribe returns a stream of market updates from all venues.
func (a *MarketDataAggregator) Subscribe() (<-chan domain.Market, func()) {
	return a.fan.Subscribe()
}

// Close stops relaying and closes all subscriber channels.
func (a *MarketDataAggregator) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.fan.CloseAll()
	})
}

func (a *MarketDataAggregator) relay(b domain.Broker) {
	defer a.wg.Done()

	exchange := b.Exchange()
	for {
		select {
		case <-a.done:
			return
		case m, ok := <-b.MarketData():
			if !ok {
				a.logger.Info("market data stream closed",
					slog.String("exchange", string(exchange)))
				return
			}
			m.Exchange = exchange
			a.fan.Publish(m)
		}
	}
}
