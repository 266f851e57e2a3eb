package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

// EngineController is the slice of the trading engine the API exposes.
type EngineController interface {
	Active() bool
	LastBest() *domain.Result
	LastComputed() *domain.Result
	SetActive(active bool)
}

// EngineHandler serves engine state and the activation toggle.
type EngineHandler struct {
	engine EngineController
}

func NewEngineHandler(engine EngineController) *EngineHandler {
	return &EngineHandler{engine: engine}
}

// resultView is the JSON shape of one leg pairing.
type resultView struct {
	RestSide     string    `json:"rest_side"`
	RestExchange string    `json:"rest_exchange"`
	HideExchange string    `json:"hide_exchange"`
	RestPrice    float64   `json:"rest_price"`
	HidePrice    float64   `json:"hide_price"`
	Size         float64   `json:"size"`
	Profit       float64   `json:"profit"`
	Generated    time.Time `json:"generated"`
}

func viewResult(r *domain.Result) *resultView {
	if r == nil {
		return nil
	}
	return &resultView{
		RestSide:     string(r.RestSide),
		RestExchange: string(r.RestBroker.Exchange()),
		HideExchange: string(r.HideBroker.Exchange()),
		RestPrice:    r.Rest.Price,
		HidePrice:    r.Hide.Price,
		Size:         r.Size,
		Profit:       r.Profit,
		Generated:    r.GeneratedTime,
	}
}

// GetState reports whether the engine is trading and the latest leg pairings.
// GET /api/engine
func (h *EngineHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":        h.engine.Active(),
		"resting":       viewResult(h.engine.LastBest()),
		"last_computed": viewResult(h.engine.LastComputed()),
	})
}

// SetActive toggles trading on or off.
// POST /api/engine/active
func (h *EngineHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Active == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"active\": true|false}")
		return
	}

	h.engine.SetActive(*body.Active)
	writeJSON(w, http.StatusAccepted, map[string]any{"active": *body.Active})
}
