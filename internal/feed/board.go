// Package feed keeps the latest quotes for the symbols the account cares
// about, refreshed by background pollers.
package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"inditrade/internal/ledger"
	"inditrade/internal/market"
	"inditrade/internal/scheduler"

	"github.com/shopspring/decimal"
)

// QuoteSource is the slice of market.Source the pollers need.
type QuoteSource interface {
	Quotes(ctx context.Context, symbols []string) (map[string]market.Quote, error)
}

// AccountReader exposes the committed account snapshot.
type AccountReader interface {
	Account() (ledger.Account, error)
}

// Board is the in-memory table of last known quotes.
type Board struct {
	mu      sync.RWMutex
	quotes  map[string]market.Quote
	updated time.Time
	clock   func() time.Time
}

func NewBoard() *Board {
	return &Board{quotes: make(map[string]market.Quote), clock: time.Now}
}

// Merge stores the given quotes, replacing older entries per symbol.
func (b *Board) Merge(quotes map[string]market.Quote) {
	if len(quotes) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for sym, q := range quotes {
		b.quotes[sym] = q
	}
	b.updated = b.clock()
}

func (b *Board) Get(symbol string) (market.Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[symbol]
	return q, ok
}

// Lookup returns the known quotes for symbols and the symbols it lacks.
func (b *Board) Lookup(symbols []string) (map[string]market.Quote, []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	found := make(map[string]market.Quote, len(symbols))
	var missing []string
	for _, sym := range symbols {
		if q, ok := b.quotes[sym]; ok {
			found[sym] = q
			continue
		}
		missing = append(missing, sym)
	}
	return found, missing
}

func (b *Board) Prices() map[string]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(b.quotes))
	for sym, q := range b.quotes {
		out[sym] = q.Price
	}
	return out
}

func (b *Board) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.quotes))
	for sym := range b.quotes {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (b *Board) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

// PriceMap flattens quotes to their prices.
func PriceMap(quotes map[string]market.Quote) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(quotes))
	for sym, q := range quotes {
		out[sym] = q.Price
	}
	return out
}

// WatchlistSymbols selects the account's watchlist.
func WatchlistSymbols(a ledger.Account) []string {
	return append([]string(nil), a.Watchlist...)
}

// PortfolioSymbols selects the symbols of open positions.
func PortfolioSymbols(a ledger.Account) []string {
	out := make([]string, 0, len(a.Positions))
	for _, p := range a.Positions {
		out = append(out, p.Symbol)
	}
	return out
}

// NewPoller builds a poller that refreshes the quotes for the symbols
// chosen from the current account and merges them into board.
func NewPoller(name string, interval time.Duration, src QuoteSource, accounts AccountReader, board *Board, pick func(ledger.Account) []string) *scheduler.Poller[map[string]market.Quote] {
	return &scheduler.Poller[map[string]market.Quote]{
		Name:           name,
		Interval:       interval,
		RunImmediately: true,
		Fetch: func(ctx context.Context) (map[string]market.Quote, error) {
			acct, err := accounts.Account()
			if err != nil {
				return nil, err
			}
			symbols := pick(acct)
			if len(symbols) == 0 {
				return nil, nil
			}
			return src.Quotes(ctx, symbols)
		},
		Apply: board.Merge,
	}
}
