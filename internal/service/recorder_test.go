package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

type memOrderLog struct {
	mu      sync.Mutex
	entries []domain.OrderLogEntry
}

func (m *memOrderLog) Insert(ctx context.Context, entry domain.OrderLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memOrderLog) ListRecent(ctx context.Context, limit int) ([]domain.OrderLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderLogEntry(nil), m.entries...), nil
}

func (m *memOrderLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type memFillStore struct {
	mu    sync.Mutex
	fills []domain.Fill
}

func (m *memFillStore) Insert(ctx context.Context, fill domain.Fill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fills = append(m.fills, fill)
	return nil
}

func (m *memFillStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Fill, error) {
	return nil, nil
}

func (m *memFillStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memFillStore) all() []domain.Fill {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Fill(nil), m.fills...)
}

type memBookCache struct {
	mu   sync.Mutex
	tops map[domain.Exchange]domain.MarketUpdate
}

func newMemBookCache() *memBookCache {
	return &memBookCache{tops: make(map[domain.Exchange]domain.MarketUpdate)}
}

func (m *memBookCache) SetTop(ctx context.Context, exchange domain.Exchange, update domain.MarketUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tops[exchange] = update
	return nil
}

func (m *memBookCache) GetTop(ctx context.Context, exchange domain.Exchange) (domain.MarketUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	top, ok := m.tops[exchange]
	if !ok {
		return domain.MarketUpdate{}, domain.ErrNotFound
	}
	return top, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runRecorder(t *testing.T, r *Recorder) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	return cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRecorderJournalsCommands(t *testing.T) {
	commands := make(chan domain.OrderLogEntry, 1)
	journal := &memOrderLog{}
	r := NewRecorder(commands, nil, nil, journal, nil, nil, testLogger())
	defer runRecorder(t, r)()

	commands <- domain.OrderLogEntry{
		Exchange:      domain.ExchangeHitBtc,
		Action:        "new",
		ClientOrderID: "c-1",
		Side:          domain.SideBid,
		Price:         240.00,
		Size:          0.5,
		TimeInForce:   domain.TimeInForceGTC,
	}

	waitFor(t, func() bool { return journal.count() == 1 })
}

func TestRecorderClassifiesHedgeFills(t *testing.T) {
	commands := make(chan domain.OrderLogEntry, 2)
	reports := make(chan domain.OrderStatusReport, 2)
	fills := &memFillStore{}
	r := NewRecorder(commands, reports, nil, nil, fills, nil, testLogger())
	defer runRecorder(t, r)()

	commands <- domain.OrderLogEntry{
		Action: "new", ClientOrderID: "rest-1", TimeInForce: domain.TimeInForceGTC,
	}
	commands <- domain.OrderLogEntry{
		Action: "new", ClientOrderID: "hedge-1", TimeInForce: domain.TimeInForceIOC,
	}

	// Give the command records time to land before the fills arrive.
	time.Sleep(50 * time.Millisecond)

	reports <- domain.OrderStatusReport{
		OrderID: "rest-1", Exchange: domain.ExchangeHitBtc, Status: domain.OrderStatusWorking,
		Side: domain.SideBid, LastQuantity: 0.4, LastPrice: 240.00, Time: time.Now(),
	}
	reports <- domain.OrderStatusReport{
		OrderID: "hedge-1", Exchange: domain.ExchangePaper, Status: domain.OrderStatusComplete,
		Side: domain.SideAsk, LastQuantity: 0.4, LastPrice: 240.50, Time: time.Now(),
	}

	waitFor(t, func() bool { return len(fills.all()) == 2 })

	got := fills.all()
	if got[0].Hedge {
		t.Error("resting-leg fill marked as hedge")
	}
	if !got[1].Hedge {
		t.Error("IOC fill not marked as hedge")
	}
}

func TestRecorderSkipsReportsWithoutFill(t *testing.T) {
	reports := make(chan domain.OrderStatusReport, 1)
	fills := &memFillStore{}
	r := NewRecorder(nil, reports, nil, nil, fills, nil, testLogger())
	defer runRecorder(t, r)()

	reports <- domain.OrderStatusReport{
		OrderID: "c-1", Status: domain.OrderStatusCancelled, Time: time.Now(),
	}

	time.Sleep(50 * time.Millisecond)
	if got := len(fills.all()); got != 0 {
		t.Errorf("recorded %d fills, want 0", got)
	}
}

func TestRecorderCachesTops(t *testing.T) {
	markets := make(chan domain.Market, 1)
	cache := newMemBookCache()
	r := NewRecorder(nil, nil, markets, nil, nil, cache, testLogger())
	defer runRecorder(t, r)()

	markets <- domain.Market{
		Exchange: domain.ExchangeHitBtc,
		Update: domain.MarketUpdate{
			Bid:  domain.PriceLevel{Price: 240.00, Size: 2},
			Ask:  domain.PriceLevel{Price: 240.10, Size: 3},
			Time: time.Now(),
		},
	}

	waitFor(t, func() bool {
		top, err := cache.GetTop(context.Background(), domain.ExchangeHitBtc)
		return err == nil && top.Bid.Price == 240.00
	})
}
