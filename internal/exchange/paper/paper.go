// Package paper implements a simulated venue: a synthetic market-data feed
// plus an order gateway that acknowledges and fills without touching a real
// exchange. It serves two roles: the second leg in dev environments, and the
// order destination for dry runs against live market data.
package paper

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

const (
	tickInterval = 500 * time.Millisecond

	marketDataBuffer  = 64
	orderStatusBuffer = 64
)

// Broker is a fully simulated venue.
type Broker struct {
	makerFee float64
	takerFee float64
	logger   *slog.Logger

	feed *feed
	og   *OrderGateway

	noPositions chan domain.CurrencyPosition
}

// NewBroker creates a paper venue with the given fee schedule. The synthetic
// book random-walks around mid.
func NewBroker(makerFee, takerFee, mid float64, logger *slog.Logger) *Broker {
	l := logger.With(slog.String("component", "paper"))
	return &Broker{
		makerFee:    makerFee,
		takerFee:    takerFee,
		logger:      l,
		feed:        newFeed(mid),
		og:          NewOrderGateway(l),
		noPositions: make(chan domain.CurrencyPosition),
	}
}

var _ domain.Broker = (*Broker)(nil)

func (b *Broker) Exchange() domain.Exchange { return domain.ExchangePaper }
func (b *Broker) DisplayName() string       { return "Paper" }
func (b *Broker) MakerFee() float64         { return b.makerFee }
func (b *Broker) TakerFee() float64         { return b.takerFee }

func (b *Broker) ConnectivityStatus() domain.ConnectivityStatus {
	return domain.Connected
}

func (b *Broker) CurrentBook() (domain.MarketUpdate, bool) {
	return b.feed.current()
}

func (b *Broker) MarketData() <-chan domain.Market {
	return b.feed.out
}

func (b *Broker) OrderStatus() <-chan domain.OrderStatusReport {
	return b.og.Reports()
}

func (b *Broker) Positions() <-chan domain.CurrencyPosition {
	return b.noPositions
}

func (b *Broker) SendOrder(order domain.SubmitNewOrder) (domain.OrderAck, error) {
	return b.og.SendOrder(order)
}

func (b *Broker) ReplaceOrder(replace domain.CancelReplaceOrder) (domain.OrderAck, error) {
	return b.og.ReplaceOrder(replace)
}

func (b *Broker) CancelOrder(cancel domain.OrderCancel) (domain.OrderAck, error) {
	return b.og.CancelOrder(cancel)
}

// Run drives the synthetic feed until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	b.logger.Info("broker running")
	return b.feed.run(ctx)
}

// feed random-walks a two-sided book and emits the top on every tick.
type feed struct {
	out chan domain.Market

	mu  sync.RWMutex
	top domain.MarketUpdate
	ok  bool

	rng *rand.Rand
}

func newFeed(mid float64) *feed {
	f := &feed{
		out: make(chan domain.Market, marketDataBuffer),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	f.top = makeTop(mid, f.rng)
	f.ok = true
	return f
}

func makeTop(mid float64, rng *rand.Rand) domain.MarketUpdate {
	spread := mid * 0.0005
	return domain.MarketUpdate{
		Bid:  domain.PriceLevel{Price: mid - spread, Size: 1 + rng.Float64()*4},
		Ask:  domain.PriceLevel{Price: mid + spread, Size: 1 + rng.Float64()*4},
		Time: time.Now(),
	}
}

func (f *feed) current() (domain.MarketUpdate, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.top, f.ok
}

func (f *feed) run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.mu.Lock()
			mid := (f.top.Bid.Price + f.top.Ask.Price) / 2
			mid *= 1 + (f.rng.Float64()-0.5)*0.001
			f.top = makeTop(mid, f.rng)
			top := f.top
			f.mu.Unlock()

			select {
			case f.out <- domain.Market{Exchange: domain.ExchangePaper, Update: top}:
			default:
			}
		}
	}
}
