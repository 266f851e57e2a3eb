package handler

import (
	"net/http"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

// MarketHandler reports the latest top of book per venue. When a venue's live
// book is not primed yet (reconnect, startup), the handler falls back to the
// last top recorded in the cache.
type MarketHandler struct {
	brokers []domain.Broker
	cache   domain.BookCache // may be nil
}

func NewMarketHandler(brokers []domain.Broker, cache domain.BookCache) *MarketHandler {
	return &MarketHandler{brokers: brokers, cache: cache}
}

type topView struct {
	Exchange  string    `json:"exchange"`
	Connected bool      `json:"connected"`
	Cached    bool      `json:"cached,omitempty"`
	Bid       float64   `json:"bid,omitempty"`
	BidSize   float64   `json:"bid_size,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
	AskSize   float64   `json:"ask_size,omitempty"`
	Time      time.Time `json:"time,omitzero"`
}

// ListTops returns the current top of book for every configured venue.
// GET /api/markets
func (h *MarketHandler) ListTops(w http.ResponseWriter, r *http.Request) {
	tops := make([]topView, 0, len(h.brokers))
	for _, b := range h.brokers {
		view := topView{
			Exchange:  string(b.Exchange()),
			Connected: b.ConnectivityStatus() == domain.Connected,
		}

		top, ok := b.CurrentBook()
		if !ok && h.cache != nil {
			if cached, err := h.cache.GetTop(r.Context(), b.Exchange()); err == nil {
				top, ok = cached, true
				view.Cached = true
			}
		}
		if ok {
			view.Bid = top.Bid.Price
			view.BidSize = top.Bid.Size
			view.Ask = top.Ask.Price
			view.AskSize = top.Ask.Size
			view.Time = top.Time
		}
		tops = append(tops, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": tops})
}
