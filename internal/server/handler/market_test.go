package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

type stubVenue struct {
	exchange  domain.Exchange
	connected bool
	top       domain.MarketUpdate
	primed    bool
}

func (s *stubVenue) Exchange() domain.Exchange { return s.exchange }
func (s *stubVenue) DisplayName() string       { return string(s.exchange) }
func (s *stubVenue) MakerFee() float64         { return 0 }
func (s *stubVenue) TakerFee() float64         { return 0 }

func (s *stubVenue) ConnectivityStatus() domain.ConnectivityStatus {
	if s.connected {
		return domain.Connected
	}
	return domain.Disconnected
}

func (s *stubVenue) CurrentBook() (domain.MarketUpdate, bool) { return s.top, s.primed }

func (s *stubVenue) MarketData() <-chan domain.Market                  { return nil }
func (s *stubVenue) OrderStatus() <-chan domain.OrderStatusReport      { return nil }
func (s *stubVenue) Positions() <-chan domain.CurrencyPosition         { return nil }
func (s *stubVenue) Run(ctx context.Context) error                     { return nil }
func (s *stubVenue) SendOrder(domain.SubmitNewOrder) (domain.OrderAck, error) {
	return domain.OrderAck{}, nil
}
func (s *stubVenue) ReplaceOrder(domain.CancelReplaceOrder) (domain.OrderAck, error) {
	return domain.OrderAck{}, nil
}
func (s *stubVenue) CancelOrder(domain.OrderCancel) (domain.OrderAck, error) {
	return domain.OrderAck{}, nil
}

type stubCache struct {
	tops map[domain.Exchange]domain.MarketUpdate
}

func (c *stubCache) SetTop(ctx context.Context, exchange domain.Exchange, update domain.MarketUpdate) error {
	c.tops[exchange] = update
	return nil
}

func (c *stubCache) GetTop(ctx context.Context, exchange domain.Exchange) (domain.MarketUpdate, error) {
	top, ok := c.tops[exchange]
	if !ok {
		return domain.MarketUpdate{}, domain.ErrNotFound
	}
	return top, nil
}

func listTops(t *testing.T, h *MarketHandler) []topView {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ListTops(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Markets []topView `json:"markets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body.Markets
}

func TestListTopsLiveBook(t *testing.T) {
	venue := &stubVenue{
		exchange:  domain.ExchangeHitBtc,
		connected: true,
		primed:    true,
		top: domain.MarketUpdate{
			Bid:  domain.PriceLevel{Price: 240.00, Size: 2},
			Ask:  domain.PriceLevel{Price: 240.10, Size: 3},
			Time: time.Now(),
		},
	}
	h := NewMarketHandler([]domain.Broker{venue}, nil)

	tops := listTops(t, h)
	if len(tops) != 1 {
		t.Fatalf("got %d venues", len(tops))
	}
	if tops[0].Bid != 240.00 || tops[0].Ask != 240.10 {
		t.Errorf("top = %+v", tops[0])
	}
	if tops[0].Cached {
		t.Error("live book must not be marked cached")
	}
}

func TestListTopsFallsBackToCache(t *testing.T) {
	venue := &stubVenue{exchange: domain.ExchangeHitBtc, connected: false, primed: false}
	cache := &stubCache{tops: map[domain.Exchange]domain.MarketUpdate{
		domain.ExchangeHitBtc: {
			Bid: domain.PriceLevel{Price: 239.50, Size: 1},
			Ask: domain.PriceLevel{Price: 239.60, Size: 1},
		},
	}}
	h := NewMarketHandler([]domain.Broker{venue}, cache)

	tops := listTops(t, h)
	if !tops[0].Cached {
		t.Error("expected cached top")
	}
	if tops[0].Bid != 239.50 {
		t.Errorf("bid = %v", tops[0].Bid)
	}
	if tops[0].Connected {
		t.Error("venue should report disconnected")
	}
}

func TestListTopsNoBookNoCache(t *testing.T) {
	venue := &stubVenue{exchange: domain.ExchangePaper, connected: true, primed: false}
	h := NewMarketHandler([]domain.Broker{venue}, nil)

	tops := listTops(t, h)
	if tops[0].Bid != 0 || tops[0].Ask != 0 {
		t.Errorf("unprimed venue should report no prices, got %+v", tops[0])
	}
}
