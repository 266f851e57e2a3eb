package agg

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mwalczyk/arbot/internal/domain"
)

// OrderBrokerAggregator routes outbound order commands to the owning broker
// and merges every broker's order-status stream into one venue-tagged
// broadcast. Construction fails if two brokers claim the same exchange id.
//
// Broker command errors are logged and swallowed here: a failed send reports
// ok=false to the caller and the engine moves on, trusting the status stream
// to reflect whatever actually happened at the venue.
type OrderBrokerAggregator struct {
	brokers  map[domain.Exchange]domain.Broker
	fan      *Fanout[domain.OrderStatusReport]
	commands *Fanout[domain.OrderLogEntry]
	logger   *slog.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewOrderBrokerAggregator(brokers []domain.Broker, logger *slog.Logger) (*OrderBrokerAggregator, error) {
	a := &OrderBrokerAggregator{
		brokers:  make(map[domain.Exchange]domain.Broker, len(brokers)),
		fan:      NewFanout[domain.OrderStatusReport](),
		commands: NewFanout[domain.OrderLogEntry](),
		logger:   logger.With(slog.String("component", "order_agg")),
		done:     make(chan struct{}),
	}

	for _, b := range brokers {
		if _, ok := a.brokers[b.Exchange()]; ok {
			return nil, fmt.Errorf("agg: exchange %q: %w", b.Exchange(), domain.ErrDuplicateExchange)
		}
		a.brokers[b.Exchange()] = b
	}

	for _, b := range brokers {
		a.wg.Add(1)
		go a.relay(b)
	}
	return a, nil
}

// Subscribe returns a stream of order status reports from all venues.
func (a *OrderBrokerAggregator) Subscribe() (<-chan domain.OrderStatusReport, func()) {
	return a.fan.Subscribe()
}

// SubscribeCommands returns a stream of successfully routed outbound commands,
// one entry per send, replace, or cancel. This feeds the order journal.
func (a *OrderBrokerAggregator) SubscribeCommands() (<-chan domain.OrderLogEntry, func()) {
	return a.commands.Subscribe()
}

// SendOrder routes a new-order command. ok is false if the command did not go
// out; the cause has already been logged.
func (a *OrderBrokerAggregator) SendOrder(exchange domain.Exchange, order domain.SubmitNewOrder) (domain.OrderAck, bool) {
	b, ok := a.broker(exchange, "send")
	if !ok {
		return domain.OrderAck{}, false
	}

	ack, err := b.SendOrder(order)
	if err != nil {
		a.logger.Error("send order failed",
			slog.String("exchange", string(exchange)),
			slog.String("side", string(order.Side)),
			slog.Float64("price", order.Price),
			slog.String("error", err.Error()))
		return domain.OrderAck{}, false
	}

	a.commands.Publish(domain.OrderLogEntry{
		Exchange:      exchange,
		Action:        "new",
		ClientOrderID: ack.ClientOrderID,
		Side:          order.Side,
		Price:         order.Price,
		Size:          order.Size,
		Type:          order.Type,
		TimeInForce:   order.TimeInForce,
		Time:          ack.Time,
	})
	return ack, true
}

// ReplaceOrder routes a cancel/replace command.
func (a *OrderBrokerAggregator) ReplaceOrder(exchange domain.Exchange, replace domain.CancelReplaceOrder) (domain.OrderAck, bool) {
	b, ok := a.broker(exchange, "replace")
	if !ok {
		return domain.OrderAck{}, false
	}

	ack, err := b.ReplaceOrder(replace)
	if err != nil {
		a.logger.Error("replace order failed",
			slog.String("exchange", string(exchange)),
			slog.String("order_id", replace.OrigOrderID),
			slog.String("error", err.Error()))
		return domain.OrderAck{}, false
	}

	a.commands.Publish(domain.OrderLogEntry{
		Exchange:      exchange,
		Action:        "replace",
		ClientOrderID: ack.ClientOrderID,
		Side:          replace.Side,
		Price:         replace.Price,
		Size:          replace.Size,
		Time:          ack.Time,
	})
	return ack, true
}

// CancelOrder routes a cancel command.
func (a *OrderBrokerAggregator) CancelOrder(exchange domain.Exchange, cancel domain.OrderCancel) (domain.OrderAck, bool) {
	b, ok := a.broker(exchange, "cancel")
	if !ok {
		return domain.OrderAck{}, false
	}

	ack, err := b.CancelOrder(cancel)
	if err != nil {
		a.logger.Error("cancel order failed",
			slog.String("exchange", string(exchange)),
			slog.String("order_id", cancel.OrderID),
			slog.String("error", err.Error()))
		return domain.OrderAck{}, false
	}

	a.commands.Publish(domain.OrderLogEntry{
		Exchange:      exchange,
		Action:        "cancel",
		ClientOrderID: cancel.OrderID,
		Side:          cancel.Side,
		Time:          ack.Time,
	})
	return ack, true
}

// Close stops relaying and closes all subscriber channels.
func (a *OrderBrokerAggregator) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.fan.CloseAll()
		a.commands.CloseAll()
	})
}

func (a *OrderBrokerAggregator) broker(exchange domain.Exchange, op string) (domain.Broker, bool) {
	b, ok := a.brokers[exchange]
	if !ok {
		a.logger.Error("order command for unknown exchange",
			slog.String("op", op),
			slog.String("exchange", string(exchange)))
		return nil, false
	}
	return b, true
}

func (a *OrderBrokerAggregator) relay(b domain.Broker) {
	defer a.wg.Done()

	exchange := b.Exchange()
	for {
		select {
		case <-a.done:
			return
		case rpt, ok := <-b.OrderStatus():
			if !ok {
				a.logger.Info("order status stream closed",
					slog.String("exchange", string(exchange)))
				return
			}
			rpt.Exchange = exchange
			a.fan.Publish(rpt)
		}
	}
}
