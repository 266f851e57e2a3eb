// Package hitbtc implements the HitBtc exchange connection: a market-data
// WebSocket with local book reconstruction, an HMAC-authenticated order-entry
// WebSocket, and a signed REST balance poller.
package hitbtc

import (
	"fmt"

	"github.com/mwalczyk/arbot/internal/domain"
)

// lotMultiplier converts between HitBtc wire quantities (lots) and normalized
// sizes. Incoming sizes are divided by it, outgoing quantities multiplied.
const lotMultiplier = 100.0

// update is one price level change on the wire. Sizes are in lots.
type update struct {
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Timestamp int64   `json:"timestamp"`
}

// marketDataSnapshotFullRefresh is a full book snapshot.
type marketDataSnapshotFullRefresh struct {
	SnapshotSeqNo  int64    `json:"snapshotSeqNo"`
	Symbol         string   `json:"symbol"`
	ExchangeStatus string   `json:"exchangeStatus"`
	Ask            []update `json:"ask"`
	Bid            []update `json:"bid"`
}

// marketDataIncrementalRefresh carries replace-semantics level updates: a zero
// size deletes the level, any other size overwrites it.
type marketDataIncrementalRefresh struct {
	SeqNo          int64    `json:"seqNo"`
	Timestamp      int64    `json:"timestamp"`
	Symbol         string   `json:"symbol"`
	ExchangeStatus string   `json:"exchangeStatus"`
	Ask            []update `json:"ask"`
	Bid            []update `json:"bid"`
	Trade          []update `json:"trade"`
}

// marketDataMessage is the envelope on the market-data socket.
type marketDataMessage struct {
	Snapshot    *marketDataSnapshotFullRefresh `json:"MarketDataSnapshotFullRefresh"`
	Incremental *marketDataIncrementalRefresh  `json:"MarketDataIncrementalRefresh"`
}

// executionReport is the order lifecycle message on the order-entry socket.
type executionReport struct {
	OrderID           string  `json:"orderId"`
	ClientOrderID     string  `json:"clientOrderId"`
	ExecReportType    string  `json:"execReportType"`
	OrderStatus       string  `json:"orderStatus"`
	OrderRejectReason string  `json:"orderRejectReason"`
	Symbol            string  `json:"symbol"`
	Side              string  `json:"side"`
	Timestamp         int64   `json:"timestamp"`
	Price             float64 `json:"price"`
	Quantity          float64 `json:"quantity"`
	Type              string  `json:"type"`
	TimeInForce       string  `json:"timeInForce"`
	TradeID           string  `json:"tradeId"`
	LastQuantity      float64 `json:"lastQuantity"`
	LastPrice         float64 `json:"lastPrice"`
	LeavesQuantity    float64 `json:"leavesQuantity"`
	CumQuantity       float64 `json:"cumQuantity"`
	AveragePrice      float64 `json:"averagePrice"`
}

// cancelReject reports a cancel request the exchange refused.
type cancelReject struct {
	ClientOrderID              string `json:"clientOrderId"`
	CancelRequestClientOrderID string `json:"cancelRequestClientOrderId"`
	RejectReasonCode           string `json:"rejectReasonCode"`
	RejectReasonText           string `json:"rejectReasonText"`
	Timestamp                  int64  `json:"timestamp"`
}

// orderEntryMessage is the envelope on the order-entry socket.
type orderEntryMessage struct {
	ExecutionReport *executionReport `json:"ExecutionReport"`
	CancelReject    *cancelReject    `json:"CancelReject"`
}

// newOrderPayload is the NewOrder command body. Quantity is in lots.
type newOrderPayload struct {
	ClientOrderID string  `json:"clientOrderId"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      float64 `json:"quantity"`
	Type          string  `json:"type"`
	Price         float64 `json:"price"`
	TimeInForce   string  `json:"timeInForce"`
}

// orderCancelPayload is the OrderCancel command body.
type orderCancelPayload struct {
	ClientOrderID              string `json:"clientOrderId"`
	CancelRequestClientOrderID string `json:"cancelRequestClientOrderId"`
	Symbol                     string `json:"symbol"`
	Side                       string `json:"side"`
}

// balanceReport is one row of the REST trading balance response.
type balanceReport struct {
	CurrencyCode string  `json:"currency_code"`
	Cash         float64 `json:"cash"`
	Reserved     float64 `json:"reserved"`
}

// balanceResponse is the /api/1/trading/balance response body.
type balanceResponse struct {
	Balance []balanceReport `json:"balance"`
}

// restOrderBook is the public REST orderbook used to prime the snapshot before
// the WebSocket stream delivers one. Levels are [price, size] string pairs.
type restOrderBook struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
}

// translateStatus maps an execution report to the canonical order status.
// Unknown report types map to StatusOther rather than failing.
func translateStatus(m *executionReport) domain.OrderStatus {
	switch m.ExecReportType {
	case "new", "status":
		return domain.OrderStatusWorking
	case "canceled":
		return domain.OrderStatusCancelled
	case "expired":
		return domain.OrderStatusComplete
	case "rejected":
		return domain.OrderStatusRejected
	case "trade":
		if m.OrderStatus == "filled" {
			return domain.OrderStatusComplete
		}
		return domain.OrderStatusWorking
	default:
		return domain.OrderStatusOther
	}
}

// translateSide maps a canonical side to the wire value, failing fast on
// anything the venue does not support.
func translateSide(s domain.Side) (string, error) {
	switch s {
	case domain.SideBid:
		return "buy", nil
	case domain.SideAsk:
		return "sell", nil
	default:
		return "", fmt.Errorf("hitbtc: side %q: %w", s, domain.ErrUnsupportedSide)
	}
}

func translateType(t domain.OrderType) (string, error) {
	switch t {
	case domain.OrderTypeLimit:
		return "limit", nil
	case domain.OrderTypeMarket:
		return "market", nil
	default:
		return "", fmt.Errorf("hitbtc: order type %q: %w", t, domain.ErrUnsupportedOrderType)
	}
}

func translateTIF(tif domain.TimeInForce) (string, error) {
	switch tif {
	case domain.TimeInForceGTC:
		return "GTC", nil
	case domain.TimeInForceIOC:
		return "IOC", nil
	case domain.TimeInForceFOK:
		return "FOK", nil
	default:
		return "", fmt.Errorf("hitbtc: time in force %q: %w", tif, domain.ErrUnsupportedTIF)
	}
}

// translateCurrency maps a HitBtc currency code to the canonical currency.
// ok is false for currencies the agent does not track.
func translateCurrency(code string) (domain.Currency, bool) {
	switch code {
	case "USD":
		return domain.CurrencyUSD, true
	case "BTC":
		return domain.CurrencyBTC, true
	case "LTC":
		return domain.CurrencyLTC, true
	default:
		return "", false
	}
}
