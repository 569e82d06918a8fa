package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	acct := NewAccount(DefaultSettings())
	acct = mustApply(t, acct, order("1", SideBuy, "TCS.NS", 3, "3333.33"))
	acct = mustApply(t, acct, order("2", SideBuy, "TCS.NS", 1, "3400.01"))
	acct = mustApply(t, acct, order("3", SideSell, "TCS.NS", 2, "3390.5"))

	raw, err := Encode(acct)
	require.NoError(t, err)
	got, repairs := Decode(raw, DefaultSettings())
	assert.Empty(t, repairs)

	assert.True(t, got.Balance.Equal(acct.Balance))
	require.Len(t, got.Positions, 1)
	assert.True(t, got.Positions[0].AvgPrice.Equal(acct.Positions[0].AvgPrice))
	assert.True(t, got.Stats.TotalProfitLoss.Equal(acct.Stats.TotalProfitLoss))
	require.Len(t, got.Trades, 3)
	assert.Equal(t, acct.Trades[0].ID, got.Trades[0].ID)
	assert.True(t, got.Trades[0].Timestamp.Equal(acct.Trades[0].Timestamp))
	assert.Equal(t, acct.Watchlist, got.Watchlist)
	assert.Equal(t, "Pro Trader", got.DisplayName)
}

func TestDecodeHealsSectionsIndependently(t *testing.T) {
	d := DefaultSettings()
	cases := []struct {
		name    string
		doc     string
		repairs []string
		check   func(t *testing.T, a Account)
	}{
		{
			name:    "not json",
			doc:     `{"balance":`,
			repairs: []string{"document"},
			check: func(t *testing.T, a Account) {
				assert.True(t, a.Balance.Equal(d.StartingBalance))
				assert.Equal(t, d.Watchlist, a.Watchlist)
			},
		},
		{
			name:    "not an object",
			doc:     `[1,2,3]`,
			repairs: []string{"document"},
		},
		{
			name:    "balance not a number keeps portfolio",
			doc:     `{"id":"u","email":"e","name":"n","balance":"NaN","portfolio":[{"symbol":"TCS.NS","quantity":2,"avgPrice":100}],"watchlist":[],"trades":[],"stats":{"wins":1,"losses":0,"totalTrades":1,"bestTrade":5,"worstTrade":0,"totalProfitLoss":5}}`,
			repairs: []string{"balance"},
			check: func(t *testing.T, a Account) {
				assert.True(t, a.Balance.Equal(d.StartingBalance))
				require.Len(t, a.Positions, 1)
				assert.Equal(t, int64(1), a.Stats.Wins)
				assert.Empty(t, a.Watchlist)
			},
		},
		{
			name:    "negative balance",
			doc:     `{"id":"u","email":"e","name":"n","balance":-10,"portfolio":[],"watchlist":[],"trades":[],"stats":{"wins":0,"losses":0,"totalTrades":0,"bestTrade":0,"worstTrade":0,"totalProfitLoss":0}}`,
			repairs: []string{"balance"},
		},
		{
			name:    "portfolio not a list keeps balance",
			doc:     `{"id":"u","email":"e","name":"n","balance":"1234.5","portfolio":{"TCS.NS":1},"watchlist":[],"trades":[],"stats":{"wins":0,"losses":0,"totalTrades":0,"bestTrade":0,"worstTrade":0,"totalProfitLoss":0}}`,
			repairs: []string{"portfolio"},
			check: func(t *testing.T, a Account) {
				assert.Equal(t, "1234.5", a.Balance.String())
				assert.Empty(t, a.Positions)
				assert.NotNil(t, a.Positions)
			},
		},
		{
			name:    "bad positions dropped and duplicates merged",
			doc:     `{"id":"u","email":"e","name":"n","balance":10,"portfolio":[{"symbol":"TCS.NS","quantity":10,"avgPrice":100},{"symbol":"X","quantity":0,"avgPrice":1},{"symbol":"Y","quantity":1.5,"avgPrice":1},{"quantity":1,"avgPrice":1},{"symbol":"tcs.ns","quantity":10,"avgPrice":"200"}],"watchlist":[],"trades":[],"stats":{"wins":0,"losses":0,"totalTrades":0,"bestTrade":0,"worstTrade":0,"totalProfitLoss":0}}`,
			repairs: []string{"portfolio"},
			check: func(t *testing.T, a Account) {
				require.Len(t, a.Positions, 1)
				assert.Equal(t, int64(20), a.Positions[0].Quantity)
				assert.Equal(t, "150", a.Positions[0].AvgPrice.String())
			},
		},
		{
			name:    "stats with a non-number resets whole struct",
			doc:     `{"id":"u","email":"e","name":"n","balance":10,"portfolio":[],"watchlist":["TCS.NS"],"trades":[],"stats":{"wins":3,"losses":1,"totalTrades":4,"bestTrade":5,"worstTrade":-1,"totalProfitLoss":null}}`,
			repairs: []string{"stats"},
			check: func(t *testing.T, a Account) {
				assert.Equal(t, zeroStats(), a.Stats)
				assert.Equal(t, []string{"TCS.NS"}, a.Watchlist)
			},
		},
		{
			name:    "missing sections",
			doc:     `{"id":"u","email":"e","name":"n","balance":10}`,
			repairs: []string{"portfolio", "watchlist", "trades", "stats"},
			check: func(t *testing.T, a Account) {
				assert.Equal(t, d.Watchlist, a.Watchlist)
				assert.Empty(t, a.Trades)
			},
		},
		{
			name:    "malformed trades and watchlist entries dropped",
			doc:     `{"id":"u","email":"e","name":"n","balance":10,"portfolio":[],"watchlist":["TCS.NS",42,"tcs.ns"],"trades":[{"id":"ok","symbol":"TCS.NS","type":"BUY","quantity":1,"price":"10","timestamp":"2024-01-03T05:00:00Z","total":"10"},{"id":"bad","type":"HOLD","quantity":1,"price":"10"},"junk"],"stats":{"wins":0,"losses":0,"totalTrades":0,"bestTrade":0,"worstTrade":0,"totalProfitLoss":0}}`,
			repairs: []string{"watchlist", "trades"},
			check: func(t *testing.T, a Account) {
				assert.Equal(t, []string{"TCS.NS"}, a.Watchlist)
				require.Len(t, a.Trades, 1)
				assert.Equal(t, "ok", a.Trades[0].ID)
			},
		},
		{
			name:    "missing identity",
			doc:     `{"balance":10,"portfolio":[],"watchlist":[],"trades":[],"stats":{"wins":0,"losses":0,"totalTrades":0,"bestTrade":0,"worstTrade":0,"totalProfitLoss":0}}`,
			repairs: []string{"id", "email", "name"},
			check: func(t *testing.T, a Account) {
				assert.Equal(t, "user_1", a.ID)
				assert.Equal(t, "trader@example.com", a.Email)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, repairs := Decode([]byte(tc.doc), d)
			assert.Equal(t, tc.repairs, repairs)
			if tc.check != nil {
				tc.check(t, got)
			}
		})
	}
}
