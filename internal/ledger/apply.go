package ledger

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceFromFloat converts a float price from an upstream feed, rejecting
// NaN, infinities and non-positive values.
func PriceFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	return decimal.NewFromFloat(f), nil
}

func validateOrder(acct Account, o Order) error {
	if strings.TrimSpace(o.Symbol) == "" {
		return ErrInvalidSymbol
	}
	if !o.Side.Valid() {
		return ErrInvalidSide
	}
	if !o.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if o.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if o.ID != "" && acct.hasTrade(o.ID) {
		return ErrDuplicateOrder
	}
	return nil
}

// Apply executes o against acct and returns the resulting snapshot and
// trade. acct is never modified; on error the returned account is the
// zero value.
func Apply(acct Account, o Order, now time.Time) (Account, Trade, error) {
	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	if err := validateOrder(acct, o); err != nil {
		return Account{}, Trade{}, err
	}
	value := o.Price.Mul(decimal.NewFromInt(o.Quantity))
	next := acct.Clone()

	switch o.Side {
	case SideBuy:
		if next.Balance.LessThan(value) {
			return Account{}, Trade{}, &InsufficientBalanceError{Required: value, Available: acct.Balance}
		}
		next.Balance = next.Balance.Sub(value)
		if i := next.positionIndex(o.Symbol); i >= 0 {
			pos := next.Positions[i]
			cost := pos.AvgPrice.Mul(decimal.NewFromInt(pos.Quantity)).Add(value)
			pos.Quantity += o.Quantity
			pos.AvgPrice = cost.Div(decimal.NewFromInt(pos.Quantity))
			next.Positions[i] = pos
		} else {
			next.Positions = append(next.Positions, Position{Symbol: o.Symbol, Quantity: o.Quantity, AvgPrice: o.Price})
		}
	case SideSell:
		i := next.positionIndex(o.Symbol)
		if i < 0 {
			return Account{}, Trade{}, &NoPositionError{Symbol: o.Symbol}
		}
		pos := next.Positions[i]
		if pos.Quantity < o.Quantity {
			return Account{}, Trade{}, &InsufficientSharesError{Symbol: o.Symbol, Owned: pos.Quantity, Requested: o.Quantity}
		}
		next.Balance = next.Balance.Add(value)
		pnl := value.Sub(pos.AvgPrice.Mul(decimal.NewFromInt(o.Quantity)))
		next.Stats = next.Stats.record(pnl)
		pos.Quantity -= o.Quantity
		if pos.Quantity == 0 {
			next.Positions = append(next.Positions[:i], next.Positions[i+1:]...)
		} else {
			next.Positions[i] = pos
		}
	}

	ts := o.Timestamp
	if ts.IsZero() {
		ts = now
	}
	trade := Trade{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Quantity:  o.Quantity,
		Price:     o.Price,
		Timestamp: ts.UTC(),
		Total:     value,
	}
	next.Trades = append([]Trade{trade}, next.Trades...)
	return next, trade, nil
}

// record folds one realized SELL outcome into the stats. A zero result
// counts as a loss.
func (s Stats) record(pnl decimal.Decimal) Stats {
	s.TotalTrades++
	if pnl.IsPositive() {
		s.Wins++
		s.BestTrade = decimal.Max(s.BestTrade, pnl)
	} else {
		s.Losses++
		s.WorstTrade = decimal.Min(s.WorstTrade, pnl)
	}
	s.TotalProfitLoss = s.TotalProfitLoss.Add(pnl)
	return s
}

// toggle removes symbol from the watchlist if present, else appends it.
// It reports whether the symbol was added.
func (a Account) toggle(symbol string) (Account, bool) {
	next := a.Clone()
	for i, s := range next.Watchlist {
		if s == symbol {
			next.Watchlist = append(next.Watchlist[:i], next.Watchlist[i+1:]...)
			return next, false
		}
	}
	next.Watchlist = append(next.Watchlist, symbol)
	return next, true
}
