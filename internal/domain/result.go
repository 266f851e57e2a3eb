package domain

import "time"

// Result is one candidate arbitrage leg pairing: rest a maker order on
// RestBroker, hedge against HideBroker's book on a fill. Brokers are held by
// reference so fee and connectivity queries reflect live state; the rest of
// the struct is an immutable snapshot of the books at GeneratedTime and goes
// stale as soon as the next MarketUpdate arrives.
type Result struct {
	RestSide      Side
	RestBroker    Broker
	HideBroker    Broker
	Profit        float64
	Rest          PriceLevel
	Hide          PriceLevel
	Size          float64
	GeneratedTime time.Time
}
