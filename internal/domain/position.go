package domain

// Currency is an ISO-ish currency code as reported by a venue.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyBTC Currency = "BTC"
	CurrencyLTC Currency = "LTC"
)

// CurrencyPosition is the balance of one currency on one exchange.
type CurrencyPosition struct {
	Currency Currency
	Amount   float64
	Exchange Exchange
}
