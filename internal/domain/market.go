package domain

import "time"

// PriceLevel is one side of the top of book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// MarketUpdate is a top-of-book snapshot at an instant. Bid.Price < Ask.Price
// whenever both sides are present.
type MarketUpdate struct {
	Bid  PriceLevel
	Ask  PriceLevel
	Time time.Time
}

// Market tags a MarketUpdate with the venue it came from. This is the event
// type carried on aggregated market-data streams.
type Market struct {
	Exchange Exchange
	Update   MarketUpdate
}
