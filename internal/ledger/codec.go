package ledger

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Encode serializes an account snapshot. Decimals are written as strings
// so the snapshot round-trips without float rounding.
func Encode(a Account) ([]byte, error) {
	return json.Marshal(a)
}

// Decode parses a stored snapshot, repairing each section independently.
// The returned repairs list names every section that had to be fixed; a
// non-empty list means the caller should persist the healed account.
func Decode(raw []byte, d Defaults) (Account, []string) {
	if !gjson.ValidBytes(raw) {
		return NewAccount(d), []string{"document"}
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return NewAccount(d), []string{"document"}
	}

	h := healer{defaults: d}
	acct := Account{
		ID:          h.identity(doc, "id", d.AccountID),
		Email:       h.identity(doc, "email", d.Email),
		DisplayName: h.identity(doc, "name", d.DisplayName),
		Balance:     h.balance(doc.Get("balance")),
		Positions:   h.positions(doc.Get("portfolio")),
		Watchlist:   h.watchlist(doc.Get("watchlist")),
		Trades:      h.trades(doc.Get("trades")),
		Stats:       h.stats(doc.Get("stats")),
	}
	return acct, h.repairs
}

type healer struct {
	defaults Defaults
	repairs  []string
}

func (h *healer) repaired(section string) {
	for _, r := range h.repairs {
		if r == section {
			return
		}
	}
	h.repairs = append(h.repairs, section)
}

func (h *healer) identity(doc gjson.Result, key, def string) string {
	v := doc.Get(key)
	if v.Type != gjson.String || strings.TrimSpace(v.Str) == "" {
		h.repaired(key)
		return def
	}
	return v.Str
}

func (h *healer) balance(v gjson.Result) decimal.Decimal {
	d, ok := decimalOf(v)
	if !ok || d.IsNegative() {
		h.repaired("balance")
		return h.defaults.StartingBalance
	}
	return d
}

// positions drops malformed entries and merges duplicate symbols at their
// weighted average cost.
func (h *healer) positions(v gjson.Result) []Position {
	out := []Position{}
	if !v.IsArray() {
		h.repaired("portfolio")
		return out
	}
	for _, item := range v.Array() {
		sym := strings.ToUpper(strings.TrimSpace(item.Get("symbol").String()))
		qty, qtyOK := intOf(item.Get("quantity"))
		avg, avgOK := decimalOf(item.Get("avgPrice"))
		if item.Get("symbol").Type != gjson.String || sym == "" || !qtyOK || qty <= 0 || !avgOK || !avg.IsPositive() {
			h.repaired("portfolio")
			continue
		}
		merged := false
		for i := range out {
			if out[i].Symbol != sym {
				continue
			}
			cost := out[i].AvgPrice.Mul(decimal.NewFromInt(out[i].Quantity)).Add(avg.Mul(decimal.NewFromInt(qty)))
			out[i].Quantity += qty
			out[i].AvgPrice = cost.Div(decimal.NewFromInt(out[i].Quantity))
			merged = true
			h.repaired("portfolio")
			break
		}
		if !merged {
			out = append(out, Position{Symbol: sym, Quantity: qty, AvgPrice: avg})
		}
	}
	return out
}

func (h *healer) watchlist(v gjson.Result) []string {
	if !v.IsArray() {
		h.repaired("watchlist")
		return append([]string{}, h.defaults.Watchlist...)
	}
	out := []string{}
	seen := make(map[string]bool)
	for _, item := range v.Array() {
		sym := strings.ToUpper(strings.TrimSpace(item.Str))
		if item.Type != gjson.String || sym == "" || seen[sym] {
			h.repaired("watchlist")
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

func (h *healer) trades(v gjson.Result) []Trade {
	out := []Trade{}
	if !v.IsArray() {
		h.repaired("trades")
		return out
	}
	for _, item := range v.Array() {
		var t Trade
		if err := json.Unmarshal([]byte(item.Raw), &t); err != nil || t.ID == "" || !t.Side.Valid() || t.Quantity <= 0 || !t.Price.IsPositive() {
			h.repaired("trades")
			continue
		}
		out = append(out, t)
	}
	return out
}

// stats is all-or-nothing: any aggregate that is not a number resets the
// whole struct.
func (h *healer) stats(v gjson.Result) Stats {
	if !v.IsObject() {
		h.repaired("stats")
		return zeroStats()
	}
	wins, ok1 := intOf(v.Get("wins"))
	losses, ok2 := intOf(v.Get("losses"))
	total, ok3 := intOf(v.Get("totalTrades"))
	best, ok4 := decimalOf(v.Get("bestTrade"))
	worst, ok5 := decimalOf(v.Get("worstTrade"))
	pnl, ok6 := decimalOf(v.Get("totalProfitLoss"))
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		h.repaired("stats")
		return zeroStats()
	}
	return Stats{Wins: wins, Losses: losses, TotalTrades: total, BestTrade: best, WorstTrade: worst, TotalProfitLoss: pnl}
}

// decimalOf accepts a JSON number or a numeric string.
func decimalOf(v gjson.Result) (decimal.Decimal, bool) {
	var s string
	switch v.Type {
	case gjson.Number:
		s = v.Raw
	case gjson.String:
		s = strings.TrimSpace(v.Str)
	default:
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func intOf(v gjson.Result) (int64, bool) {
	d, ok := decimalOf(v)
	if !ok || !d.IsInteger() {
		return 0, false
	}
	return d.IntPart(), true
}
