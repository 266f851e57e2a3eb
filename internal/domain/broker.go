package domain

// ConnectivityStatus reports whether a connection's transport is live.
type ConnectivityStatus string

const (
	Connected    ConnectivityStatus = "connected"
	Disconnected ConnectivityStatus = "disconnected"
)

// Broker is the capability set every exchange connection implements: a
// market-data stream, an order-entry target, a position stream, and static
// venue metadata. Order methods are fire-and-forget; the returned OrderAck
// confirms submission only, and execution is reported asynchronously on the
// OrderStatus stream.
type Broker interface {
	// Exchange returns the venue identifier. Ids must be unique across the
	// set of brokers handed to the aggregation layer.
	Exchange() Exchange
	DisplayName() string

	// MakerFee and TakerFee return current fee rates as fractions
	// (e.g. 0.001 = 10 bps). A negative maker fee is a rebate.
	MakerFee() float64
	TakerFee() float64

	ConnectivityStatus() ConnectivityStatus

	// CurrentBook returns the latest reconstructed top of book. ok is false
	// until the first snapshot has been applied.
	CurrentBook() (MarketUpdate, bool)

	// MarketData pushes a new top of book whenever the best level changes.
	MarketData() <-chan Market
	OrderStatus() <-chan OrderStatusReport
	Positions() <-chan CurrencyPosition

	SendOrder(order SubmitNewOrder) (OrderAck, error)
	ReplaceOrder(replace CancelReplaceOrder) (OrderAck, error)
	CancelOrder(cancel OrderCancel) (OrderAck, error)
}
