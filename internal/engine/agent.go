// Package engine implements the arbitrage decision loop: it watches the
// merged market-data stream, maintains at most one resting maker order across
// all venues, and fires the hedging leg when that order executes.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/mwalczyk/arbot/internal/agg"
	"github.com/mwalczyk/arbot/internal/domain"
)

const (
	// minLegSize is the smallest leg worth crossing the wire for.
	minLegSize = 0.01

	// repriceThreshold is the rest-price move that justifies replacing the
	// live order.
	repriceThreshold = 1e-3

	commandBuffer = 16
)

// Eventer receives engine lifecycle events for operator notification. Event
// names: "start", "stop", "arbfire", "active".
type Eventer interface {
	Publish(event, message string)
}

// Agent runs the decision loop. All state transitions happen on the single
// Run goroutine; external inputs arrive via the aggregators and the command
// channel.
type Agent struct {
	brokers   []domain.Broker
	md        *agg.MarketDataAggregator
	orders    *agg.OrderBrokerAggregator
	maxSize   float64
	minProfit float64
	logger    *slog.Logger
	eventer   Eventer // may be nil

	bestFan *agg.Fanout[*domain.Result]
	cmds    chan command

	// Decision state, owned by the Run goroutine.
	active         bool
	lastBest       *domain.Result
	activeOrderIDs map[domain.Exchange]string
	// armed is set while a resting order exists; fills on the rest venue
	// trigger the hedge only in that window.
	armed      bool
	armedVenue domain.Exchange

	// Snapshot of decision state for concurrent readers (HTTP API).
	mu           sync.RWMutex
	activeSnap   bool
	lastComputed *domain.Result
	lastBestSnap *domain.Result
}

type command struct {
	setActive bool
}

// New creates an agent over an ordered broker list. eventer may be nil.
func New(brokers []domain.Broker, md *agg.MarketDataAggregator, orders *agg.OrderBrokerAggregator,
	maxSize, minProfit float64, eventer Eventer, logger *slog.Logger) *Agent {
	return &Agent{
		brokers:        brokers,
		md:             md,
		orders:         orders,
		maxSize:        maxSize,
		minProfit:      minProfit,
		logger:         logger.With(slog.String("component", "agent")),
		eventer:        eventer,
		bestFan:        agg.NewFanout[*domain.Result](),
		cmds:           make(chan command, commandBuffer),
		activeOrderIDs: make(map[domain.Exchange]string),
	}
}

// Active reports the operator toggle.
func (a *Agent) Active() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activeSnap
}

// LastBest returns the working leg pairing, nil when no order is resting.
func (a *Agent) LastBest() *domain.Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastBestSnap
}

// LastComputed returns the most recent recalculation outcome, nil when no
// pairing was eligible. It is advisory; only LastBest reflects live orders.
func (a *Agent) LastComputed() *domain.Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastComputed
}

// SubscribeBestResults returns a stream of recalculation outcomes, delivered
// off the decision path. A nil result means nothing was eligible.
func (a *Agent) SubscribeBestResults() (<-chan *domain.Result, func()) {
	return a.bestFan.Subscribe()
}

// SetActive requests an operator toggle. The transition happens on the Run
// goroutine.
func (a *Agent) SetActive(to bool) {
	select {
	case a.cmds <- command{setActive: to}:
	default:
		a.logger.Warn("command buffer full, dropping toggle")
	}
}

// Run drives the decision loop until ctx is cancelled. On shutdown the agent
// cancels any resting order.
func (a *Agent) Run(ctx context.Context) error {
	mdSub, cancelMD := a.md.Subscribe()
	defer cancelMD()

	statusSub, cancelStatus := a.orders.Subscribe()
	defer cancelStatus()

	a.logger.Info("agent running",
		slog.Float64("max_size", a.maxSize),
		slog.Float64("min_profit", a.minProfit))

	for {
		select {
		case <-ctx.Done():
			if a.active {
				a.changeActive(false, time.Now())
			}
			a.bestFan.CloseAll()
			return ctx.Err()

		case cmd := <-a.cmds:
			a.changeActive(cmd.setActive, time.Now())

		case m, ok := <-mdSub:
			if !ok {
				return nil
			}
			a.recalc(m.Update.Time)

		case rpt, ok := <-statusSub:
			if !ok {
				return nil
			}
			a.onOrderStatus(rpt)
		}
	}
}

// changeActive applies the operator toggle: turning on triggers an immediate
// recalculation, turning off tears down any resting order.
func (a *Agent) changeActive(to bool, t time.Time) {
	if a.active == to {
		return
	}
	a.active = to
	a.snapshot()

	a.logger.Info("changing active status", slog.Bool("active", to))
	if to {
		a.publishEvent("active", "engine activated")
	} else {
		a.publishEvent("active", "engine deactivated")
	}

	if to {
		a.recalc(t)
	} else if a.lastBest != nil {
		a.stop(a.lastBest, true, t)
	}
}

// brokerReady reports whether a venue can participate in a pairing: it has a
// reconstructed book and a live connection. Connectivity loss is handled
// lazily; an unreachable venue simply drops out of recalculation and any
// resting order there is dealt with when the next decision needs it.
func brokerReady(b domain.Broker) (domain.MarketUpdate, bool) {
	top, ok := b.CurrentBook()
	if !ok || b.ConnectivityStatus() != domain.Connected {
		return domain.MarketUpdate{}, false
	}
	return top, ok
}

// recalc evaluates every ordered rest/hide venue pair against the current
// books and applies the decision table against the previously working
// pairing.
func (a *Agent) recalc(t time.Time) {
	var best *domain.Result
	bestProfit := math.SmallestNonzeroFloat64

	for i, restBroker := range a.brokers {
		restTop, ok := brokerReady(restBroker)
		if !ok {
			continue
		}

		for j, hideBroker := range a.brokers {
			if i == j {
				continue
			}
			hideTop, ok := brokerReady(hideBroker)
			if !ok {
				continue
			}

			restFee := 1 + restBroker.MakerFee()
			hideFee := 1 + hideBroker.TakerFee()

			bidSize := math.Min(a.maxSize, hideTop.Bid.Size)
			pBid := bidSize * (-restFee*restTop.Bid.Price + hideFee*hideTop.Bid.Price)

			askSize := math.Min(a.maxSize, hideTop.Ask.Size)
			pAsk := askSize * (restFee*restTop.Ask.Price - hideFee*hideTop.Ask.Price)

			if pBid > bestProfit && pBid > a.minProfit && bidSize >= minLegSize {
				bestProfit = pBid
				best = &domain.Result{
					RestSide:      domain.SideBid,
					RestBroker:    restBroker,
					HideBroker:    hideBroker,
					Profit:        pBid,
					Rest:          restTop.Bid,
					Hide:          hideTop.Bid,
					Size:          bidSize,
					GeneratedTime: t,
				}
			}

			if pAsk > bestProfit && pAsk > a.minProfit && askSize >= minLegSize {
				bestProfit = pAsk
				best = &domain.Result{
					RestSide:      domain.SideAsk,
					RestBroker:    restBroker,
					HideBroker:    hideBroker,
					Profit:        pAsk,
					Rest:          restTop.Ask,
					Hide:          hideTop.Ask,
					Size:          askSize,
					GeneratedTime: t,
				}
			}
		}
	}

	a.mu.Lock()
	a.lastComputed = best
	a.mu.Unlock()

	// Deliver off the decision path.
	a.bestFan.Publish(best)

	if !a.active {
		return
	}

	switch {
	case best == nil && a.lastBest != nil:
		a.stop(a.lastBest, true, t)

	case best != nil && a.lastBest == nil:
		a.start(best)

	case best != nil && a.lastBest != nil:
		if best.RestBroker.Exchange() != a.lastBest.RestBroker.Exchange() ||
			best.RestSide != a.lastBest.RestSide {
			// don't flicker between pairings on marginal differences
			if math.Abs(best.Profit-a.lastBest.Profit) < a.minProfit {
				a.noChange(best)
			} else {
				a.stop(a.lastBest, true, t)
				a.start(best)
			}
		} else if math.Abs(best.Rest.Price-a.lastBest.Rest.Price) > repriceThreshold {
			a.modify(best)
		} else {
			a.noChange(best)
		}
	}
}

func (a *Agent) noChange(r *domain.Result) {
	a.logger.Debug("NO CHANGE", resultAttrs(r)...)
}

// modify re-prices the resting order: cancel the live one, send a fresh one
// at the new rest price.
func (a *Agent) modify(r *domain.Result) {
	restExch := r.RestBroker.Exchange()

	a.orders.CancelOrder(restExch, domain.OrderCancel{
		OrderID:  a.activeOrderIDs[restExch],
		Side:     r.RestSide,
		Exchange: restExch,
		Time:     r.GeneratedTime,
	})

	ack, ok := a.orders.SendOrder(restExch, domain.SubmitNewOrder{
		Side:        r.RestSide,
		Size:        r.Size,
		Type:        domain.OrderTypeLimit,
		Price:       r.Rest.Price,
		TimeInForce: domain.TimeInForceGTC,
		Exchange:    restExch,
		Time:        r.GeneratedTime,
	})
	if !ok {
		// The cancel went out but the replacement did not, so no order is
		// live. Tear down to the stopped state and let the next
		// recalculation start fresh.
		a.logger.Error("MODIFY replacement rejected by venue, stopping",
			slog.String("rest", r.RestBroker.DisplayName()))
		a.stop(r, false, r.GeneratedTime)
		return
	}
	a.activeOrderIDs[restExch] = ack.ClientOrderID

	a.logger.Info("MODIFY", resultAttrs(r)...)

	a.lastBest = r
	a.snapshot()
}

// start rests the maker leg and arms the fill handler for its venue.
func (a *Agent) start(r *domain.Result) {
	restExch := r.RestBroker.Exchange()

	ack, ok := a.orders.SendOrder(restExch, domain.SubmitNewOrder{
		Side:        r.RestSide,
		Size:        r.Size,
		Type:        domain.OrderTypeLimit,
		Price:       r.Rest.Price,
		TimeInForce: domain.TimeInForceGTC,
		Exchange:    restExch,
		Time:        r.GeneratedTime,
	})
	if !ok {
		// Nothing is resting; leaving lastBest nil makes the next
		// recalculation retry from scratch.
		a.logger.Error("START rejected by venue, not resting",
			slog.String("rest", r.RestBroker.DisplayName()))
		return
	}

	a.activeOrderIDs[restExch] = ack.ClientOrderID
	a.armed = true
	a.armedVenue = restExch

	a.logger.Info("START", resultAttrs(r)...)
	a.publishEvent("start", "resting "+string(r.RestSide)+" on "+r.RestBroker.DisplayName())

	a.lastBest = r
	a.snapshot()
}

// stop disarms the fill handler and optionally cancels the resting order.
// sendCancel is false when the order is already in a terminal state.
func (a *Agent) stop(lr *domain.Result, sendCancel bool, t time.Time) {
	a.armed = false

	restExch := lr.RestBroker.Exchange()
	if sendCancel {
		a.orders.CancelOrder(restExch, domain.OrderCancel{
			OrderID:  a.activeOrderIDs[restExch],
			Side:     lr.RestSide,
			Exchange: restExch,
			Time:     t,
		})
	}
	delete(a.activeOrderIDs, restExch)

	a.logger.Info("STOP", resultAttrs(lr)...)
	a.publishEvent("stop", "stopped resting on "+lr.RestBroker.DisplayName())

	a.lastBest = nil
	a.snapshot()
}

// onOrderStatus watches for executions of the resting order and fires the
// hedge.
func (a *Agent) onOrderStatus(rpt domain.OrderStatusReport) {
	if !a.armed || a.lastBest == nil {
		return
	}
	if rpt.Exchange != a.armedVenue || rpt.LastQuantity <= 0 {
		return
	}

	a.arbFire(rpt)
}

// arbFire hedges an execution of the resting leg: an immediate-or-cancel
// order for the filled quantity on the opposite side at the hide venue's
// current top, then teardown. The cancel is skipped when the rest order
// already completed.
func (a *Agent) arbFire(rpt domain.OrderStatusReport) {
	hideBroker := a.lastBest.HideBroker

	hideTop, ok := hideBroker.CurrentBook()
	if !ok {
		a.logger.Error("no hide book to hedge against",
			slog.String("hide", hideBroker.DisplayName()))
		return
	}

	px := hideTop.Bid.Price
	if rpt.Side == domain.SideAsk {
		px = hideTop.Ask.Price
	}
	side := rpt.Side.Opposite()

	a.orders.SendOrder(hideBroker.Exchange(), domain.SubmitNewOrder{
		Side:        side,
		Size:        rpt.LastQuantity,
		Type:        domain.OrderTypeLimit,
		Price:       px,
		TimeInForce: domain.TimeInForceIOC,
		Exchange:    hideBroker.Exchange(),
		Time:        rpt.Time,
	})

	a.logger.Info("ARBFIRE",
		slog.String("rested_side", string(rpt.Side)),
		slog.Float64("quantity", rpt.LastQuantity),
		slog.Float64("rest_price", rpt.LastPrice),
		slog.String("rest_exchange", string(a.lastBest.RestBroker.Exchange())),
		slog.String("hedge_side", string(side)),
		slog.Float64("hedge_price", px),
		slog.String("hide_exchange", string(hideBroker.Exchange())))
	a.publishEvent("arbfire", "hedged fill on "+hideBroker.DisplayName())

	a.stop(a.lastBest, rpt.Status != domain.OrderStatusComplete, rpt.Time)
}

func (a *Agent) snapshot() {
	a.mu.Lock()
	a.activeSnap = a.active
	a.lastBestSnap = a.lastBest
	a.mu.Unlock()
}

func (a *Agent) publishEvent(event, message string) {
	if a.eventer != nil {
		a.eventer.Publish(event, message)
	}
}

func resultAttrs(r *domain.Result) []any {
	return []any{
		slog.Float64("profit", r.Profit),
		slog.String("side", string(r.RestSide)),
		slog.String("rest", r.RestBroker.DisplayName()),
		slog.Float64("rest_price", r.Rest.Price),
		slog.String("hide", r.HideBroker.DisplayName()),
		slog.Float64("hide_price", r.Hide.Price),
		slog.Float64("size", r.Size),
	}
}
