package hitbtc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mwalczyk/arbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	// marketDataBuffer is the market-data channel capacity. Updates are
	// dropped, not blocked on, when the consumer falls behind.
	marketDataBuffer = 256
)

// MarketDataGateway maintains the market-data WebSocket and a locally
// reconstructed book, emitting a top-of-book update for every applied message.
type MarketDataGateway struct {
	wsURL   string
	pullURL string
	symbol  string
	logger  *slog.Logger
	httpc   *http.Client

	book *book
	out  chan domain.Market

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

// NewMarketDataGateway creates a gateway for the given endpoints. Call Connect
// to start streaming.
func NewMarketDataGateway(wsURL, pullURL, symbol string, logger *slog.Logger) *MarketDataGateway {
	return &MarketDataGateway{
		wsURL:   wsURL,
		pullURL: pullURL,
		symbol:  symbol,
		logger:  logger.With(slog.String("component", "hitbtc_md")),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		book:    newBook(),
		out:     make(chan domain.Market, marketDataBuffer),
		status:  domain.Disconnected,
		done:    make(chan struct{}),
	}
}

// Updates is the stream of top-of-book updates.
func (g *MarketDataGateway) Updates() <-chan domain.Market {
	return g.out
}

// CurrentBook returns the latest reconstructed top. ok is false until the
// first snapshot has been applied.
func (g *MarketDataGateway) CurrentBook() (domain.MarketUpdate, bool) {
	return g.book.top(time.Now())
}

// ConnectivityStatus reports whether the market-data socket is live.
func (g *MarketDataGateway) ConnectivityStatus() domain.ConnectivityStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// Connect dials the market-data socket, primes the book from the public REST
// orderbook, and starts the read and ping loops.
func (g *MarketDataGateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("hitbtc/md: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, g.wsURL, nil)
	if err != nil {
		return fmt.Errorf("hitbtc/md: connect: %w", err)
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
	go g.primeSnapshot(ctx)

	return nil
}

// Close shuts down the socket and the update stream.
func (g *MarketDataGateway) Close() error {
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

// primeSnapshot fetches the public REST orderbook so the agent has a book
// before the stream delivers its own snapshot. Failures are logged and left to
// the stream to repair.
func (g *MarketDataGateway) primeSnapshot(ctx context.Context) {
	endpoint := fmt.Sprintf("%s/api/1/public/%s/orderbook", g.pullURL, g.symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		g.logger.Warn("prime snapshot request", slog.String("error", err.Error()))
		return
	}

	resp, err := g.httpc.Do(req)
	if err != nil {
		g.logger.Warn("prime snapshot fetch", slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("prime snapshot status", slog.Int("code", resp.StatusCode))
		return
	}

	var ob restOrderBook
	if err := json.NewDecoder(resp.Body).Decode(&ob); err != nil {
		g.logger.Warn("prime snapshot decode", slog.String("error", err.Error()))
		return
	}

	snap := &marketDataSnapshotFullRefresh{Symbol: g.symbol}
	snap.Bid = parseRestLevels(ob.Bids)
	snap.Ask = parseRestLevels(ob.Asks)
	if len(snap.Bid) == 0 || len(snap.Ask) == 0 {
		return
	}

	if top, ok := g.book.applySnapshot(snap, time.Now()); ok {
		g.emit(top)
	}
}

func parseRestLevels(levels [][]string) []update {
	out := make([]update, 0, len(levels))
	for _, lvl := range levels {
		if len(lvl) < 2 {
			continue
		}
		px, err1 := strconv.ParseFloat(lvl[0], 64)
		sz, err2 := strconv.ParseFloat(lvl[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, update{Price: px, Size: sz})
	}
	return out
}

func (g *MarketDataGateway) readLoop() {
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
func (g *MarketDataGateway) pingLoop(conn *websocket.Conn, connDone <-chan struct{}) {
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

// ping writes one ping frame under the write lock.
func (g *MarketDataGateway) ping(conn *websocket.Conn) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

func (g *MarketDataGateway) handleMessage(raw []byte) {
	t := time.Now()

	var msg marketDataMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.logger.Warn("unparseable message",
			slog.String("error", err.Error()),
			slog.String("raw", string(raw)))
		return
	}

	switch {
	case msg.Incremental != nil:
		if msg.Incremental.Symbol != g.symbol {
			return
		}
		if top, ok := g.book.applyIncremental(msg.Incremental, t); ok {
			g.emit(top)
		}

	case msg.Snapshot != nil:
		if msg.Snapshot.Symbol != g.symbol {
			return
		}
		if top, ok := g.book.applySnapshot(msg.Snapshot, t); ok {
			g.emit(top)
		}

	default:
		g.logger.Debug("unhandled message", slog.String("raw", string(raw)))
	}
}

// emit forwards a top-of-book update without blocking the read loop. A full
// buffer drops the update; the next message carries fresher state anyway.
func (g *MarketDataGateway) emit(top domain.MarketUpdate) {
	select {
	case g.out <- domain.Market{Exchange: domain.ExchangeHitBtc, Update: top}:
	default:
		g.logger.Debug("market data buffer full, dropping update")
	}
}

// reconnect re-establishes the connection with exponential backoff. It blocks
// until successful or the gateway is closed.
func (g *MarketDataGateway) reconnect() {
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
