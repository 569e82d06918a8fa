package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type Holding struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	LastPrice     decimal.Decimal `json:"lastPrice"`
	Priced        bool            `json:"priced"`
	Invested      decimal.Decimal `json:"invested"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	ProfitLoss    decimal.Decimal `json:"profitLoss"`
	ProfitLossPct decimal.Decimal `json:"profitLossPct"`
}

// Valuation marks the portfolio to market.
type Valuation struct {
	Balance       decimal.Decimal `json:"balance"`
	Invested      decimal.Decimal `json:"invested"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	ProfitLoss    decimal.Decimal `json:"profitLoss"`
	ProfitLossPct decimal.Decimal `json:"profitLossPct"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	Holdings      []Holding       `json:"holdings"`
}

// Value computes the valuation using prices keyed by symbol. Holdings with
// no price are carried at their average cost.
func (a Account) Value(prices map[string]decimal.Decimal) Valuation {
	v := Valuation{Balance: a.Balance, Holdings: make([]Holding, 0, len(a.Positions))}
	for _, p := range a.Positions {
		qty := decimal.NewFromInt(p.Quantity)
		h := Holding{Symbol: p.Symbol, Quantity: p.Quantity, AvgPrice: p.AvgPrice, LastPrice: p.AvgPrice}
		if px, ok := prices[p.Symbol]; ok && px.IsPositive() {
			h.LastPrice = px
			h.Priced = true
		}
		h.Invested = p.AvgPrice.Mul(qty)
		h.CurrentValue = h.LastPrice.Mul(qty)
		h.ProfitLoss = h.CurrentValue.Sub(h.Invested)
		h.ProfitLossPct = percentOf(h.ProfitLoss, h.Invested)
		v.Invested = v.Invested.Add(h.Invested)
		v.CurrentValue = v.CurrentValue.Add(h.CurrentValue)
		v.Holdings = append(v.Holdings, h)
	}
	v.ProfitLoss = v.CurrentValue.Sub(v.Invested)
	v.ProfitLossPct = percentOf(v.ProfitLoss, v.Invested)
	v.TotalValue = v.Balance.Add(v.CurrentValue)
	return v
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
