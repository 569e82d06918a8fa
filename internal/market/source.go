package market

import "context"

// Source is the read side of the market data feed consumed by the ledger
// HTTP surface and the pollers.
type Source interface {
	Quote(ctx context.Context, symbol string) (Quote, error)

	// Quotes returns the quotes that could be fetched; failures are skipped.
	Quotes(ctx context.Context, symbols []string) (map[string]Quote, error)

	Candles(ctx context.Context, symbol string, r Range) (ChartMeta, []Candle, error)

	// Search never fails; upstream errors yield an empty list.
	Search(ctx context.Context, query string) []SearchResult
}
