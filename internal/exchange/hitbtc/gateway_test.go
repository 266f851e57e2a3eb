package hitbtc

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newWSServer runs a WebSocket endpoint that accepts one upgrade and drains
// frames until the client goes away.
func newWSServer(t *testing.T) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMarketDataPingLoopExitsWhenConnRetired(t *testing.T) {
	g := NewMarketDataGateway("ws://unused", "http://unused", "BTCUSD", testLogger())

	connDone := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		g.pingLoop(nil, connDone)
		close(exited)
	}()

	close(connDone)

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("ping loop kept running after its connection was retired")
	}
}

func TestOrderEntryPingLoopExitsWhenConnRetired(t *testing.T) {
	g := NewOrderEntryGateway("ws://unused", "BTCUSD", "key", "secret", testLogger())

	connDone := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		g.pingLoop(nil, connDone)
		close(exited)
	}()

	close(connDone)

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("ping loop kept running after its connection was retired")
	}
}

func TestOrderEntryPingWaitsForWriteLock(t *testing.T) {
	url := newWSServer(t)
	conn := dialWS(t, url)

	g := NewOrderEntryGateway(url, "BTCUSD", "key", "secret", testLogger())

	g.writeMu.Lock()
	pinged := make(chan error, 1)
	go func() { pinged <- g.ping(conn) }()

	select {
	case <-pinged:
		t.Fatal("ping wrote while another writer held the socket")
	case <-time.After(100 * time.Millisecond):
	}

	g.writeMu.Unlock()
	select {
	case err := <-pinged:
		if err != nil {
			t.Fatalf("ping after unlock: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ping never completed")
	}
}

func TestMarketDataPingWaitsForWriteLock(t *testing.T) {
	url := newWSServer(t)
	conn := dialWS(t, url)

	g := NewMarketDataGateway(url, "http://unused", "BTCUSD", testLogger())

	g.writeMu.Lock()
	pinged := make(chan error, 1)
	go func() { pinged <- g.ping(conn) }()

	select {
	case <-pinged:
		t.Fatal("ping wrote while another writer held the socket")
	case <-time.After(100 * time.Millisecond):
	}

	g.writeMu.Unlock()
	select {
	case err := <-pinged:
		if err != nil {
			t.Fatalf("ping after unlock: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ping never completed")
	}
}

func TestMarketDataLogsRawOnParseFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	g := NewMarketDataGateway("ws://unused", "http://unused", "BTCUSD", logger)
	g.handleMessage([]byte(`{"MarketDataIncrementalRefresh": garbage`))

	if !strings.Contains(buf.String(), "garbage") {
		t.Errorf("log line missing the raw payload: %s", buf.String())
	}
}

func TestOrderEntryLogsRawOnParseFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	g := NewOrderEntryGateway("ws://unused", "BTCUSD", "key", "secret", logger)
	g.handleMessage([]byte(`{"ExecutionReport": garbage`))

	if !strings.Contains(buf.String(), "garbage") {
		t.Errorf("log line missing the raw payload: %s", buf.String())
	}
}
