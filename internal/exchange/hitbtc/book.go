package hitbtc

import (
	"sync"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

// book reconstructs the order book from a snapshot plus incremental refreshes.
// Levels are stored in wire lots; conversion to normalized sizes happens when
// the top is extracted. Incrementals received before the first snapshot are
// dropped.
type book struct {
	mu     sync.RWMutex
	bids   map[float64]float64
	asks   map[float64]float64
	primed bool
}

func newBook() *book {
	return &book{}
}

// applySnapshot replaces the book wholesale and returns the new top.
func (b *book) applySnapshot(msg *marketDataSnapshotFullRefresh, t time.Time) (domain.MarketUpdate, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = make(map[float64]float64, len(msg.Bid))
	b.asks = make(map[float64]float64, len(msg.Ask))
	for _, u := range msg.Bid {
		b.bids[u.Price] = u.Size
	}
	for _, u := range msg.Ask {
		b.asks[u.Price] = u.Size
	}
	b.primed = true

	return b.topLocked(t)
}

// applyIncremental applies replace-semantics level updates: size zero deletes
// the level, any other size overwrites it. Returns ok=false if the book has
// not been primed by a snapshot yet or either side is empty afterwards.
func (b *book) applyIncremental(msg *marketDataIncrementalRefresh, t time.Time) (domain.MarketUpdate, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.primed {
		return domain.MarketUpdate{}, false
	}

	applySide(b.bids, msg.Bid)
	applySide(b.asks, msg.Ask)

	return b.topLocked(t)
}

func applySide(side map[float64]float64, updates []update) {
	for _, u := range updates {
		if u.Size == 0 {
			delete(side, u.Price)
		} else {
			side[u.Price] = u.Size
		}
	}
}

// top returns the current best bid and ask.
func (b *book) top(t time.Time) (domain.MarketUpdate, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.primed {
		return domain.MarketUpdate{}, false
	}
	return b.topLocked(t)
}

func (b *book) topLocked(t time.Time) (domain.MarketUpdate, bool) {
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return domain.MarketUpdate{}, false
	}

	bestBid := bestLevel(b.bids, func(a, b float64) bool { return a > b })
	bestAsk := bestLevel(b.asks, func(a, b float64) bool { return a < b })

	return domain.MarketUpdate{
		Bid:  domain.PriceLevel{Price: bestBid, Size: b.bids[bestBid] / lotMultiplier},
		Ask:  domain.PriceLevel{Price: bestAsk, Size: b.asks[bestAsk] / lotMultiplier},
		Time: t,
	}, true
}

func bestLevel(side map[float64]float64, better func(a, b float64) bool) float64 {
	var best float64
	first := true
	for px := range side {
		if first || better(px, best) {
			best = px
			first = false
		}
	}
	return best
}
