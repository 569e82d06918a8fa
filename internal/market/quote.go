package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type MarketState string

const (
	StateOpen   MarketState = "OPEN"
	StateClosed MarketState = "CLOSED"
)

// Quote is a point-in-time price derived from the live feed. It is never
// persisted.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previousClose"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Timestamp     time.Time       `json:"timestamp"`
	Currency      string          `json:"currency"`
	Volume        int64           `json:"volume"`
	MarketState   MarketState     `json:"marketState"`
}

type SearchResult struct {
	Symbol      string `json:"symbol"`
	ShortName   string `json:"shortName"`
	Exchange    string `json:"exchange"`
	TypeDisplay string `json:"typeDisplay"`
}

// NewQuote fills the derived change fields from price and previous close.
func NewQuote(symbol string, price, prevClose decimal.Decimal) Quote {
	q := Quote{Symbol: symbol, Price: price, PreviousClose: prevClose}
	q.Change = price.Sub(prevClose)
	if prevClose.IsPositive() {
		q.ChangePercent = q.Change.Div(prevClose).Mul(decimal.NewFromInt(100)).Round(4)
	}
	return q
}
