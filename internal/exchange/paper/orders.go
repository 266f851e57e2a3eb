package paper

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwalczyk/arbot/internal/domain"
)

// OrderGateway acknowledges orders without routing them anywhere. Resting
// limit orders sit as Working until cancelled; IOC and market orders fill
// immediately at their own price so downstream accounting sees a complete
// round trip.
type OrderGateway struct {
	logger *slog.Logger
	out    chan domain.OrderStatusReport

	mu   sync.Mutex
	live map[string]domain.SubmitNewOrder
}

func NewOrderGateway(logger *slog.Logger) *OrderGateway {
	return &OrderGateway{
		logger: logger.With(slog.String("component", "paper_og")),
		out:    make(chan domain.OrderStatusReport, orderStatusBuffer),
		live:   make(map[string]domain.SubmitNewOrder),
	}
}

// Reports is the stream of simulated order status reports.
func (g *OrderGateway) Reports() <-chan domain.OrderStatusReport {
	return g.out
}

// ConnectivityStatus always reports connected; there is no transport.
func (g *OrderGateway) ConnectivityStatus() domain.ConnectivityStatus {
	return domain.Connected
}

func (g *OrderGateway) SendOrder(order domain.SubmitNewOrder) (domain.OrderAck, error) {
	id := uuid.NewString()
	now := time.Now()

	if order.TimeInForce == domain.TimeInForceIOC || order.Type == domain.OrderTypeMarket {
		g.emit(domain.OrderStatusReport{
			OrderID:      id,
			Exchange:     domain.ExchangePaper,
			Status:       domain.OrderStatusComplete,
			Side:         order.Side,
			LastQuantity: order.Size,
			LastPrice:    order.Price,
			CumQuantity:  order.Size,
			Time:         now,
		})
		return domain.OrderAck{ClientOrderID: id, Time: now}, nil
	}

	g.mu.Lock()
	g.live[id] = order
	g.mu.Unlock()

	g.emit(domain.OrderStatusReport{
		OrderID:        id,
		Exchange:       domain.ExchangePaper,
		Status:         domain.OrderStatusWorking,
		Side:           order.Side,
		LeavesQuantity: order.Size,
		Time:           now,
	})
	return domain.OrderAck{ClientOrderID: id, Time: now}, nil
}

func (g *OrderGateway) ReplaceOrder(replace domain.CancelReplaceOrder) (domain.OrderAck, error) {
	if _, err := g.CancelOrder(domain.OrderCancel{
		OrderID:  replace.OrigOrderID,
		Side:     replace.Side,
		Exchange: replace.Exchange,
		Time:     replace.Time,
	}); err != nil {
		return domain.OrderAck{}, err
	}

	return g.SendOrder(domain.SubmitNewOrder{
		Side:        replace.Side,
		Size:        replace.Size,
		Type:        domain.OrderTypeLimit,
		Price:       replace.Price,
		TimeInForce: domain.TimeInForceGTC,
		Exchange:    replace.Exchange,
		Time:        replace.Time,
	})
}

func (g *OrderGateway) CancelOrder(cancel domain.OrderCancel) (domain.OrderAck, error) {
	g.mu.Lock()
	_, ok := g.live[cancel.OrderID]
	delete(g.live, cancel.OrderID)
	g.mu.Unlock()

	if !ok {
		return domain.OrderAck{}, fmt.Errorf("paper: cancel %s: %w", cancel.OrderID, domain.ErrNotFound)
	}

	g.emit(domain.OrderStatusReport{
		OrderID:  cancel.OrderID,
		Exchange: domain.ExchangePaper,
		Status:   domain.OrderStatusCancelled,
		Side:     cancel.Side,
		Time:     time.Now(),
	})
	return domain.OrderAck{ClientOrderID: cancel.OrderID, Time: time.Now()}, nil
}

// Fill marks a resting order as executed, for tests and manual simulation.
func (g *OrderGateway) Fill(orderID string, price float64) error {
	g.mu.Lock()
	order, ok := g.live[orderID]
	delete(g.live, orderID)
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("paper: fill %s: %w", orderID, domain.ErrNotFound)
	}

	g.emit(domain.OrderStatusReport{
		OrderID:      orderID,
		Exchange:     domain.ExchangePaper,
		Status:       domain.OrderStatusComplete,
		Side:         order.Side,
		LastQuantity: order.Size,
		LastPrice:    price,
		CumQuantity:  order.Size,
		Time:         time.Now(),
	})
	return nil
}

func (g *OrderGateway) emit(rpt domain.OrderStatusReport) {
	select {
	case g.out <- rpt:
	default:
		g.logger.Warn("order status buffer full, dropping report",
			slog.String("order_id", rpt.OrderID))
	}
}
