package hitbtc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mwalczyk/arbot/internal/domain"
)

// orderStatusBuffer is the order-status channel capacity. Reports are never
// dropped; the read loop blocks if the consumer stalls this far behind.
const orderStatusBuffer = 256

// OrderEntryGateway maintains the authenticated order-entry WebSocket. Order
// commands are fire-and-forget; execution reports and cancel rejects arrive on
// the Reports stream.
type OrderEntryGateway struct {
	wsURL  string
	symbol string
	signer *signer
	logger *slog.Logger

	out chan domain.OrderStatusReport

	mu       sync.RWMutex
	conn     *websocket.Conn
	connDone chan struct{}
	status   domain.ConnectivityStatus
	closed   bool

	// writeMu serializes writes to the socket; gorilla/websocket supports
	// only one concurrent writer.
	writeMu sync.Mutex

	done chan struct{}
}

// NewOrderEntryGateway creates a gateway for the given endpoint and
// credentials. Call Connect to log in and start streaming reports.
func NewOrderEntryGateway(wsURL, symbol, apiKey, secret string, logger *slog.Logger) *OrderEntryGateway {
	return &OrderEntryGateway{
		wsURL:  wsURL,
		symbol: symbol,
		signer: newSigner(apiKey, secret),
		logger: logger.With(slog.String("component", "hitbtc_oe")),
		out:    make(chan domain.OrderStatusReport, orderStatusBuffer),
		status: domain.Disconnected,
		done:   make(chan struct{}),
	}
}

// Reports is the stream of order status reports.
func (g *OrderEntryGateway) Reports() <-chan domain.OrderStatusReport {
	return g.out
}

// ConnectivityStatus reports whether the order-entry socket is live.
func (g *OrderEntryGateway) ConnectivityStatus() domain.ConnectivityStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// Connect dials the order-entry socket, sends the Login command, and starts
// the read and ping loops.
func (g *OrderEntryGateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("hitbtc/oe: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, g.wsURL, nil)
	if err != nil {
		return fmt.Errorf("hitbtc/oe: connect: %w", err)
	}

	// Retire the previous connection's ping loop before swapping conns.
	if g.connDone != nil {
		close(g.connDone)
	}
	g.connDone = make(chan struct{})

	g.conn = conn
	g.status = domain.Connected

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go g.readLoop()
	go g.pingLoop(conn, g.connDone)

	if err := g.sendCommand("Login", struct{}{}); err != nil {
		return fmt.Errorf("hitbtc/oe: login: %w", err)
	}

	return nil
}

// Close shuts down the socket.
func (g *OrderEntryGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}

	g.closed = true
	g.status = domain.Disconnected
	close(g.done)
	if g.connDone != nil {
		close(g.connDone)
		g.connDone = nil
	}

	if g.conn != nil {
		g.writeMu.Lock()
		_ = g.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		g.writeMu.Unlock()
		return g.conn.Close()
	}
	return nil
}

// SendOrder submits a new order. The acknowledged client order id keys all
// subsequent reports for this order.
func (g *OrderEntryGateway) SendOrder(order domain.SubmitNewOrder) (domain.OrderAck, error) {
	side, err := translateSide(order.Side)
	if err != nil {
		return domain.OrderAck{}, err
	}
	typ, err := translateType(order.Type)
	if err != nil {
		return domain.OrderAck{}, err
	}
	tif, err := translateTIF(order.TimeInForce)
	if err != nil {
		return domain.OrderAck{}, err
	}

	clientOrderID := uuid.NewString()
	payload := newOrderPayload{
		ClientOrderID: clientOrderID,
		Symbol:        g.symbol,
		Side:          side,
		Quantity:      order.Size * lotMultiplier,
		Type:          typ,
		Price:         order.Price,
		TimeInForce:   tif,
	}

	if err := g.sendCommand("NewOrder", payload); err != nil {
		return domain.OrderAck{}, err
	}
	return domain.OrderAck{ClientOrderID: clientOrderID, Time: time.Now()}, nil
}

// ReplaceOrder re-prices a live order as cancel-then-new. The returned ack
// carries the replacement's fresh client order id.
func (g *OrderEntryGateway) ReplaceOrder(replace domain.CancelReplaceOrder) (domain.OrderAck, error) {
	_, err := g.CancelOrder(domain.OrderCancel{
		OrderID:  replace.OrigOrderID,
		Side:     replace.Side,
		Exchange: replace.Exchange,
		Time:     replace.Time,
	})
	if err != nil {
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

// CancelOrder requests cancellation of a live order.
func (g *OrderEntryGateway) CancelOrder(cancel domain.OrderCancel) (domain.OrderAck, error) {
	side, err := translateSide(cancel.Side)
	if err != nil {
		return domain.OrderAck{}, err
	}

	requestID := uuid.NewString()
	payload := orderCancelPayload{
		ClientOrderID:              cancel.OrderID,
		CancelRequestClientOrderID: requestID,
		Symbol:                     g.symbol,
		Side:                       side,
	}

	if err := g.sendCommand("OrderCancel", payload); err != nil {
		return domain.OrderAck{}, err
	}
	return domain.OrderAck{ClientOrderID: cancel.OrderID, Time: time.Now()}, nil
}

// sendCommand signs and writes one authenticated command to the socket.
func (g *OrderEntryGateway) sendCommand(msgType string, payload any) error {
	g.mu.RLock()
	conn := g.conn
	g.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("hitbtc/oe: %s: %w", msgType, domain.ErrNotConnected)
	}

	body, err := g.signer.signCommand(msgType, payload)
	if err != nil {
		return err
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return fmt.Errorf("hitbtc/oe: write %s: %w", msgType, err)
	}
	return nil
}

func (g *OrderEntryGateway) readLoop() {
	for {
		select {
		case <-g.done:
			return
		default:
		}

		g.mu.RLock()
		conn := g.conn
		g.mu.RUnlock()

		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-g.done:
				return
			default:
			}

			g.mu.Lock()
			g.status = domain.Disconnected
			g.mu.Unlock()

			g.reconnect()
			return
		}

		g.handleMessage(raw)
	}
}

// pingLoop keeps one connection alive. It exits when the gateway closes, the
// connection is replaced, or a ping fails.
func (g *OrderEntryGateway) pingLoop(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			if err := g.ping(conn); err != nil {
				return
			}
		}
	}
}

// ping writes one ping frame under the write lock so it cannot interleave
// with an order command.
func (g *OrderEntryGateway) ping(conn *websocket.Conn) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

func (g *OrderEntryGateway) handleMessage(raw []byte) {
	t := time.Now()

	var msg orderEntryMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.logger.Warn("unparseable message",
			slog.String("error", err.Error()),
			slog.String("raw", string(raw)))
		return
	}

	switch {
	case msg.ExecutionReport != nil:
		g.deliver(reportFromExecution(msg.ExecutionReport, t))
	case msg.CancelReject != nil:
		g.deliver(reportFromCancelReject(msg.CancelReject, t))
	default:
		g.logger.Debug("unhandled message", slog.String("raw", string(raw)))
	}
}

// reportFromExecution translates a wire execution report to the canonical
// form. LastQuantity and LastPrice are populated only for actual executions;
// LeavesQuantity only while the order is still working.
func reportFromExecution(m *executionReport, t time.Time) domain.OrderStatusReport {
	status := translateStatus(m)

	rpt := domain.OrderStatusReport{
		OrderID:         m.ClientOrderID,
		ExchangeOrderID: m.OrderID,
		Exchange:        domain.ExchangeHitBtc,
		Status:          status,
		CumQuantity:     m.CumQuantity / lotMultiplier,
		RejectMessage:   m.OrderRejectReason,
		Time:            t,
	}

	switch m.Side {
	case "buy":
		rpt.Side = domain.SideBid
	case "sell":
		rpt.Side = domain.SideAsk
	}

	if m.LastQuantity > 0 {
		rpt.LastQuantity = m.LastQuantity / lotMultiplier
		rpt.LastPrice = m.LastPrice
	}
	if status == domain.OrderStatusWorking {
		rpt.LeavesQuantity = m.LeavesQuantity / lotMultiplier
	}

	return rpt
}

func reportFromCancelReject(m *cancelReject, t time.Time) domain.OrderStatusReport {
	return domain.OrderStatusReport{
		OrderID:        m.ClientOrderID,
		Exchange:       domain.ExchangeHitBtc,
		Status:         domain.OrderStatusRejected,
		RejectMessage:  m.RejectReasonText,
		CancelRejected: true,
		Time:           t,
	}
}

// deliver blocks rather than dropping; losing an execution report would
// desynchronize the engine's view of its live order.
func (g *OrderEntryGateway) deliver(rpt domain.OrderStatusReport) {
	select {
	case g.out <- rpt:
	case <-g.done:
	}
}

func (g *OrderEntryGateway) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-g.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := g.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
