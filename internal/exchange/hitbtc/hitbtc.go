package hitbtc

import (
	"context"
	"log/slog"

	"github.com/mwalczyk/arbot/internal/domain"
)

// HitBtc fee schedule as fractions. The maker fee is a rebate.
const (
	makerFee = -0.0001
	takerFee = 0.001
)

// OrderEntry is the order-command surface the broker delegates to. In live
// mode this is the venue's OrderEntryGateway; in dry runs the wiring layer
// substitutes the paper gateway so market data stays real while orders do not.
type OrderEntry interface {
	SendOrder(order domain.SubmitNewOrder) (domain.OrderAck, error)
	ReplaceOrder(replace domain.CancelReplaceOrder) (domain.OrderAck, error)
	CancelOrder(cancel domain.OrderCancel) (domain.OrderAck, error)
	Reports() <-chan domain.OrderStatusReport
	ConnectivityStatus() domain.ConnectivityStatus
}

// connecter is implemented by gateways that own a socket lifecycle.
type connecter interface {
	Connect(ctx context.Context) error
	Close() error
}

// Broker combines the market-data, order-entry, and position gateways into
// the capability set the aggregation layer consumes.
type Broker struct {
	md     *MarketDataGateway
	oe     OrderEntry
	pg     *PositionGateway // nil in dev mode
	logger *slog.Logger

	noPositions chan domain.CurrencyPosition
}

// NewBroker assembles a broker from its gateways. pg may be nil when balance
// polling is unavailable (demo keys).
func NewBroker(md *MarketDataGateway, oe OrderEntry, pg *PositionGateway, logger *slog.Logger) *Broker {
	return &Broker{
		md:          md,
		oe:          oe,
		pg:          pg,
		logger:      logger.With(slog.String("component", "hitbtc")),
		noPositions: make(chan domain.CurrencyPosition),
	}
}

var _ domain.Broker = (*Broker)(nil)

func (b *Broker) Exchange() domain.Exchange { return domain.ExchangeHitBtc }
func (b *Broker) DisplayName() string       { return "HitBtc" }
func (b *Broker) MakerFee() float64         { return makerFee }
func (b *Broker) TakerFee() float64         { return takerFee }

// ConnectivityStatus is Connected only when both sockets are live.
func (b *Broker) ConnectivityStatus() domain.ConnectivityStatus {
	if b.md.ConnectivityStatus() != domain.Connected {
		return domain.Disconnected
	}
	if b.oe.ConnectivityStatus() != domain.Connected {
		return domain.Disconnected
	}
	return domain.Connected
}

func (b *Broker) CurrentBook() (domain.MarketUpdate, bool) {
	return b.md.CurrentBook()
}

func (b *Broker) MarketData() <-chan domain.Market {
	return b.md.Updates()
}

func (b *Broker) OrderStatus() <-chan domain.OrderStatusReport {
	return b.oe.Reports()
}

func (b *Broker) Positions() <-chan domain.CurrencyPosition {
	if b.pg == nil {
		return b.noPositions
	}
	return b.pg.Updates()
}

func (b *Broker) SendOrder(order domain.SubmitNewOrder) (domain.OrderAck, error) {
	return b.oe.SendOrder(order)
}

func (b *Broker) ReplaceOrder(replace domain.CancelReplaceOrder) (domain.OrderAck, error) {
	return b.oe.ReplaceOrder(replace)
}

func (b *Broker) CancelOrder(cancel domain.OrderCancel) (domain.OrderAck, error) {
	return b.oe.CancelOrder(cancel)
}

// Run connects the sockets, keeps the position poller running, and tears
// everything down when ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	if err := b.md.Connect(ctx); err != nil {
		return err
	}
	defer b.md.Close()

	if c, ok := b.oe.(connecter); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		defer c.Close()
	}

	b.logger.Info("broker running")

	if b.pg != nil {
		return b.pg.Run(ctx)
	}

	<-ctx.Done()
	return ctx.Err()
}
