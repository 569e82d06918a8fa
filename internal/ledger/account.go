package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Position is a holding in one symbol at its weighted average cost.
type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avgPrice"`
}

// Trade is an executed order. Trades are never edited once recorded.
type Trade struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"type"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Total     decimal.Decimal `json:"total"`
}

// Stats aggregates realized SELL outcomes.
type Stats struct {
	Wins            int64           `json:"wins"`
	Losses          int64           `json:"losses"`
	TotalTrades     int64           `json:"totalTrades"`
	BestTrade       decimal.Decimal `json:"bestTrade"`
	WorstTrade      decimal.Decimal `json:"worstTrade"`
	TotalProfitLoss decimal.Decimal `json:"totalProfitLoss"`
}

type Account struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	DisplayName string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`
	Positions   []Position      `json:"portfolio"`
	Watchlist   []string        `json:"watchlist"`
	Trades      []Trade         `json:"trades"`
	Stats       Stats           `json:"stats"`
}

// Order is a market order request. An empty ID is filled in by the engine.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Defaults describes the account created on first run and on reset.
type Defaults struct {
	AccountID       string
	Email           string
	DisplayName     string
	StartingBalance decimal.Decimal
	Watchlist       []string
}

func DefaultSettings() Defaults {
	return Defaults{
		AccountID:       "user_1",
		Email:           "trader@example.com",
		DisplayName:     "Pro Trader",
		StartingBalance: decimal.NewFromInt(1_000_000),
		Watchlist:       []string{"RELIANCE.NS", "TCS.NS", "INFY.NS", "HDFCBANK.NS"},
	}
}

// NewAccount builds the default snapshot: starting balance, no holdings,
// no history and the seed watchlist.
func NewAccount(d Defaults) Account {
	return Account{
		ID:          d.AccountID,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		Balance:     d.StartingBalance,
		Positions:   []Position{},
		Watchlist:   append([]string{}, d.Watchlist...),
		Trades:      []Trade{},
		Stats:       zeroStats(),
	}
}

func zeroStats() Stats {
	return Stats{BestTrade: decimal.Zero, WorstTrade: decimal.Zero, TotalProfitLoss: decimal.Zero}
}

// Clone returns a copy that shares no slices with a.
func (a Account) Clone() Account {
	out := a
	out.Positions = append(make([]Position, 0, len(a.Positions)), a.Positions...)
	out.Watchlist = append(make([]string, 0, len(a.Watchlist)), a.Watchlist...)
	out.Trades = append(make([]Trade, 0, len(a.Trades)), a.Trades...)
	return out
}

func (a Account) Position(symbol string) (Position, bool) {
	if i := a.positionIndex(symbol); i >= 0 {
		return a.Positions[i], true
	}
	return Position{}, false
}

func (a Account) positionIndex(symbol string) int {
	for i, p := range a.Positions {
		if p.Symbol == symbol {
			return i
		}
	}
	return -1
}

func (a Account) Watching(symbol string) bool {
	for _, s := range a.Watchlist {
		if s == symbol {
			return true
		}
	}
	return false
}

func (a Account) hasTrade(id string) bool {
	for _, t := range a.Trades {
		if t.ID == id {
			return true
		}
	}
	return false
}

// RecentTrades returns at most limit trades, newest first.
func (a Account) RecentTrades(limit int) []Trade {
	if limit <= 0 || limit >= len(a.Trades) {
		return append([]Trade{}, a.Trades...)
	}
	return append([]Trade{}, a.Trades[:limit]...)
}
