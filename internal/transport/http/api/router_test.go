package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inditrade/internal/feed"
	"inditrade/internal/gateway/relay"
	"inditrade/internal/ledger"
	"inditrade/internal/market"
	"inditrade/internal/pkg/symbol"
	"inditrade/internal/store"
	filestore "inditrade/internal/store/file"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Quote(ctx context.Context, sym string) (market.Quote, error) {
	args := m.Called(ctx, sym)
	return args.Get(0).(market.Quote), args.Error(1)
}

func (m *mockSource) Quotes(ctx context.Context, symbols []string) (map[string]market.Quote, error) {
	args := m.Called(ctx, symbols)
	out, _ := args.Get(0).(map[string]market.Quote)
	return out, args.Error(1)
}

func (m *mockSource) Candles(ctx context.Context, sym string, r market.Range) (market.ChartMeta, []market.Candle, error) {
	args := m.Called(ctx, sym, r)
	candles, _ := args.Get(1).([]market.Candle)
	return args.Get(0).(market.ChartMeta), candles, args.Error(2)
}

func (m *mockSource) Search(ctx context.Context, q string) []market.SearchResult {
	args := m.Called(ctx, q)
	out, _ := args.Get(0).([]market.SearchResult)
	return out
}

type relayStub struct{}

func (relayStub) Health() relay.Health {
	return relay.Health{Sticky: 1, Relays: []relay.RelayHealth{{Name: "a"}, {Name: "b", Sticky: true}}}
}

type fixture struct {
	server *Server
	src    *mockSource
	board  *feed.Board
	engine *ledger.Engine
	events *filestore.EventStore
}

var fixedNow = time.Date(2024, 1, 3, 10, 0, 0, 0, market.IST)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	snaps, err := filestore.NewSnapshotStore(filepath.Join(dir, "account.json"))
	require.NoError(t, err)
	events, err := filestore.NewEventStore(filepath.Join(dir, "journal.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	eng, err := ledger.NewEngine(snaps, ledger.Options{
		Events:    events,
		Clock:     func() time.Time { return fixedNow },
		Normalize: symbol.Normalize,
	})
	require.NoError(t, err)
	_, err = eng.Load(context.Background())
	require.NoError(t, err)

	src := new(mockSource)
	board := feed.NewBoard()
	srv, err := NewServer(ServerConfig{Deps: Deps{
		Ledger:   eng,
		Market:   src,
		Calendar: market.NewCalendar(),
		Board:    board,
		Relays:   relayStub{},
		Journal:  events,
		Clock:    func() time.Time { return fixedNow },
	}})
	require.NoError(t, err)
	return &fixture{server: srv, src: src, board: board, engine: eng, events: events}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func quote(sym string, price, prev int64) market.Quote {
	return market.NewQuote(sym, decimal.NewFromInt(price), decimal.NewFromInt(prev))
}

func TestNewServerRequiresDeps(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthAndMarketStatus(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = f.do(t, http.MethodGet, "/api/market/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["open"])
	assert.Equal(t, "OPEN", body["state"])
}

func TestQuoteEndpoints(t *testing.T) {
	f := newFixture(t)
	f.src.On("Quote", mock.Anything, "tcs").Return(quote("TCS.NS", 3500, 3400), nil).Once()
	f.src.On("Quote", mock.Anything, "NOPE").Return(market.Quote{}, market.ErrSymbolNotFound).Once()
	f.src.On("Quote", mock.Anything, "SLOW").Return(market.Quote{}, fmt.Errorf("all relays: %w", market.ErrNetworkTimeout)).Once()
	f.src.On("Quote", mock.Anything, "DOWN").Return(market.Quote{}, market.ErrQuoteUnavailable).Once()

	rec, body := f.do(t, http.MethodGet, "/api/quotes/tcs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TCS.NS", body["symbol"])
	_, ok := f.board.Get("TCS.NS")
	assert.True(t, ok, "served quotes land on the board")

	rec, _ = f.do(t, http.MethodGet, "/api/quotes/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/quotes/SLOW", "")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.NotEmpty(t, body["hint"])

	rec, _ = f.do(t, http.MethodGet, "/api/quotes/DOWN", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	f.src.On("Quotes", mock.Anything, []string{"TCS", "INFY", "SBIN"}).
		Return(map[string]market.Quote{"TCS.NS": quote("TCS.NS", 1, 1)}, nil).Once()
	rec, body = f.do(t, http.MethodGet, "/api/quotes?symbols=TCS,INFY&symbols=SBIN", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []any{"INFY.NS", "SBIN.NS"}, body["missing"])

	rec, _ = f.do(t, http.MethodGet, "/api/quotes", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.src.AssertExpectations(t)
}

func TestCandlesAndSearch(t *testing.T) {
	f := newFixture(t)
	f.src.On("Candles", mock.Anything, "TCS", market.Range5D).
		Return(market.ChartMeta{Symbol: "TCS.NS"}, []market.Candle{{Time: 1, Close: 10}}, nil).Once()
	f.src.On("Search", mock.Anything, "tat").Return([]market.SearchResult{{Symbol: "TATAMOTORS.NS"}}).Once()

	rec, body := f.do(t, http.MethodGet, "/api/candles/TCS?range=5D", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["candles"], 1)

	rec, _ = f.do(t, http.MethodGet, "/api/candles/TCS?range=10y", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/search?q=tat", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["results"], 1)
	f.src.AssertExpectations(t)
}

func TestOrderFlow(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/orders", `{"id":"o-1","symbol":"tcs","side":"buy","quantity":10,"price":"100"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trade := body["trade"].(map[string]any)
	assert.Equal(t, "TCS.NS", trade["symbol"])
	assert.Equal(t, "BUY", trade["type"])
	assert.Equal(t, "999000", body["account"].(map[string]any)["balance"])

	t.Run("price omitted uses a fresh quote", func(t *testing.T) {
		f.src.On("Quote", mock.Anything, "TCS.NS").Return(quote("TCS.NS", 120, 100), nil).Once()
		rec, body := f.do(t, http.MethodPost, "/api/orders", `{"symbol":"TCS","side":"SELL","quantity":5}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		trade := body["trade"].(map[string]any)
		assert.Equal(t, "120", trade["price"])
		assert.NotEmpty(t, trade["id"])
	})

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"symbol":`, http.StatusBadRequest},
		{"fractional quantity", `{"symbol":"TCS","side":"BUY","quantity":1.5,"price":"1"}`, http.StatusBadRequest},
		{"bad side", `{"symbol":"TCS","side":"HOLD","quantity":1,"price":"1"}`, http.StatusBadRequest},
		{"zero price", `{"symbol":"TCS","side":"BUY","quantity":1,"price":"0"}`, http.StatusBadRequest},
		{"duplicate id", `{"id":"o-1","symbol":"TCS","side":"BUY","quantity":1,"price":"1"}`, http.StatusBadRequest},
		{"oversell", `{"symbol":"TCS","side":"SELL","quantity":50,"price":"1"}`, http.StatusUnprocessableEntity},
		{"no position", `{"symbol":"INFY","side":"SELL","quantity":1,"price":"1"}`, http.StatusUnprocessableEntity},
		{"insufficient balance", `{"symbol":"MRF","side":"BUY","quantity":100,"price":"150000"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := f.do(t, http.MethodPost, "/api/orders", tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, body["error"])
		})
	}

	rec, body = f.do(t, http.MethodGet, "/api/trades?limit=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["trades"], 1)
	assert.Equal(t, float64(2), body["total"])

	rec, _ = f.do(t, http.MethodGet, "/api/trades?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.src.AssertExpectations(t)
}

func TestPortfolioFetchesMissingPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.engine.ExecuteOrder(ctx, ledger.Order{Symbol: "TCS", Side: ledger.SideBuy, Quantity: 10, Price: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, _, err = f.engine.ExecuteOrder(ctx, ledger.Order{Symbol: "INFY", Side: ledger.SideBuy, Quantity: 1, Price: decimal.NewFromInt(50)})
	require.NoError(t, err)

	f.board.Merge(map[string]market.Quote{"TCS.NS": quote("TCS.NS", 110, 100)})
	f.src.On("Quotes", mock.Anything, []string{"INFY.NS"}).
		Return(map[string]market.Quote{"INFY.NS": quote("INFY.NS", 60, 50)}, nil).Once()

	rec, body := f.do(t, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1050", body["invested"])
	assert.Equal(t, "1160", body["currentValue"])
	assert.Equal(t, "110", body["profitLoss"])
	_, ok := f.board.Get("INFY.NS")
	assert.True(t, ok)
	f.src.AssertExpectations(t)
}

func TestWatchlistResetRelaysJournal(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/watchlist/sbin/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["added"])
	assert.Contains(t, body["watchlist"], "SBIN.NS")

	rec, body = f.do(t, http.MethodPost, "/api/account/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, body["watchlist"], "SBIN.NS")
	assert.Equal(t, "1000000", body["balance"])

	rec, body = f.do(t, http.MethodGet, "/api/account", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user_1", body["id"])

	rec, body = f.do(t, http.MethodGet, "/api/relays", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["sticky"])

	rec, body = f.do(t, http.MethodGet, "/api/journal?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := body["events"].([]any)
	require.Len(t, events, 2)
	assert.Equal(t, string(store.EventAccountReset), events[0].(map[string]any)["type"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk full")))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(ledger.ErrNotLoaded))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&ledger.InsufficientSharesError{Symbol: "X", Owned: 1, Requested: 2}))
}
