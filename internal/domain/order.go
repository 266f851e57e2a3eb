package domain

import "time"

// Exchange identifies a trading venue.
type Exchange string

const (
	ExchangeHitBtc Exchange = "hitbtc"
	ExchangePaper  Exchange = "paper"
)

// Side indicates which side of the book an order rests on.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TimeInForce controls how long an order may remain live.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// OrderStatus is the canonical lifecycle state reported for an order.
// Exchange-specific execution-report codes are translated into this set by
// each connection; unrecognized codes surface as OrderStatusOther rather than
// being dropped.
type OrderStatus string

const (
	OrderStatusWorking   OrderStatus = "working"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusComplete  OrderStatus = "complete"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusOther     OrderStatus = "other"
)

// SubmitNewOrder is an outbound new-order command. Size and Price are in
// normalized units; connections convert to wire-level lots themselves.
type SubmitNewOrder struct {
	Side        Side
	Size        float64
	Type        OrderType
	Price       float64
	TimeInForce TimeInForce
	Exchange    Exchange
	Time        time.Time
}

// CancelReplaceOrder requests that a live order be re-priced. Venues without a
// native replace implement it as cancel-then-new; the replacement receives a
// fresh client order id.
type CancelReplaceOrder struct {
	OrigOrderID string
	Side        Side
	Size        float64
	Price       float64
	Exchange    Exchange
	Time        time.Time
}

// OrderCancel requests cancellation of a live order.
type OrderCancel struct {
	OrderID  string
	Side     Side
	Exchange Exchange
	Time     time.Time
}

// OrderAck acknowledges that a command was submitted to the venue. It says
// nothing about execution; that arrives later on the order-status stream.
type OrderAck struct {
	ClientOrderID string
	Time          time.Time
}

// OrderStatusReport is an inbound order state event.
type OrderStatusReport struct {
	OrderID         string // client order id
	ExchangeOrderID string
	Exchange        Exchange
	Status          OrderStatus
	Side            Side
	LastQuantity    float64 // set only when > 0 on the wire
	LastPrice       float64 // set only alongside LastQuantity
	LeavesQuantity  float64 // set only while Status == Working
	CumQuantity     float64
	RejectMessage   string
	CancelRejected  bool
	Time            time.Time
}
