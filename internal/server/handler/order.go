package handler

import (
	"log/slog"
	"net/http"

	"github.com/mwalczyk/arbot/internal/domain"
)

// OrderHandler serves the persisted order journal.
type OrderHandler struct {
	store  domain.OrderLogStore // nil when persistence is disabled
	logger *slog.Logger
}

func NewOrderHandler(store domain.OrderLogStore, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{store: store, logger: logger.With(slog.String("handler", "orders"))}
}

// ListRecent returns the most recent outbound order commands.
// GET /api/orders
func (h *OrderHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "order journal is disabled")
		return
	}

	entries, err := h.store.ListRecent(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.Error("list order journal", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read order journal")
		return
	}
	if entries == nil {
		entries = []domain.OrderLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": entries})
}
