package handler

import (
	"net/http"

	"github.com/mwalczyk/arbot/internal/agg"
)

// PositionHandler reports the latest balances per venue.
type PositionHandler struct {
	positions *agg.PositionAggregator
}

func NewPositionHandler(positions *agg.PositionAggregator) *PositionHandler {
	return &PositionHandler{positions: positions}
}

// ListBalances returns every venue's last reported balance per currency.
// Venues that have not reported yet are absent.
// GET /api/positions
func (h *PositionHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	snapshot := h.positions.Snapshot()

	balances := make(map[string]map[string]float64, len(snapshot))
	for exchange, byCurrency := range snapshot {
		venue := make(map[string]float64, len(byCurrency))
		for currency, amount := range byCurrency {
			venue[string(currency)] = amount
		}
		balances[string(exchange)] = venue
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": balances})
}
