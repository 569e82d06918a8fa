package yahoo

import (
	"context"
	"errors"
	"testing"
	"time"

	"inditrade/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, path string, allowCache bool) ([]byte, error) {
	args := m.Called(ctx, path, allowCache)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

// 2024-01-03 10:00 IST, a Wednesday inside the session.
var sessionTime = time.Date(2024, 1, 3, 4, 30, 0, 0, time.UTC)

func newTestSource(f Fetcher) *Source {
	return New(f, Options{Clock: func() time.Time { return sessionTime }})
}

const quoteDoc = `{"chart":{"result":[{"meta":{
	"symbol":"RELIANCE.NS","currency":"INR","regularMarketPrice":2600.5,
	"chartPreviousClose":2500,"regularMarketTime":1704270000,"regularMarketVolume":1234567
}}],"error":null}}`

func TestQuote(t *testing.T) {
	f := new(mockFetcher)
	f.On("Fetch", mock.Anything, "v8/finance/chart/RELIANCE.NS?interval=1m&range=1d&useYfid=true", true).
		Return([]byte(quoteDoc), nil).Once()
	src := newTestSource(f)

	q, err := src.Quote(context.Background(), " reliance ")
	require.NoError(t, err)
	assert.Equal(t, "RELIANCE.NS", q.Symbol)
	assert.Equal(t, "2600.5", q.Price.String())
	assert.Equal(t, "100.5", q.Change.String())
	assert.Equal(t, "4.02", q.ChangePercent.String())
	assert.Equal(t, int64(1234567), q.Volume)
	assert.Equal(t, "INR", q.Currency)
	assert.Equal(t, time.Unix(1704270000, 0).UTC(), q.Timestamp)
	assert.Equal(t, market.StateOpen, q.MarketState)
	f.AssertExpectations(t)
}

func TestQuoteMissingFields(t *testing.T) {
	cases := map[string]string{
		"no result":     `{"chart":{"result":[],"error":null}}`,
		"no price":      `{"chart":{"result":[{"meta":{"chartPreviousClose":10}}]}}`,
		"zero price":    `{"chart":{"result":[{"meta":{"regularMarketPrice":0,"chartPreviousClose":10}}]}}`,
		"no prev close": `{"chart":{"result":[{"meta":{"regularMarketPrice":10}}]}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			f := new(mockFetcher)
			f.On("Fetch", mock.Anything, mock.Anything, true).Return([]byte(doc), nil)
			_, err := newTestSource(f).Quote(context.Background(), "TCS")
			assert.ErrorIs(t, err, market.ErrQuoteUnavailable)
		})
	}
}

func TestQuotePreviousCloseFallback(t *testing.T) {
	f := new(mockFetcher)
	f.On("Fetch", mock.Anything, mock.Anything, true).
		Return([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":110,"previousClose":100}}]}}`), nil)
	q, err := newTestSource(f).Quote(context.Background(), "TCS")
	require.NoError(t, err)
	assert.Equal(t, "TCS.NS", q.Symbol)
	assert.Equal(t, "10", q.ChangePercent.String())
	assert.Equal(t, sessionTime, q.Timestamp)
}

func TestQuotesSkipsFailures(t *testing.T) {
	f := new(mockFetcher)
	f.On("Fetch", mock.Anything, "v8/finance/chart/RELIANCE.NS?interval=1m&range=1d&useYfid=true", true).
		Return([]byte(quoteDoc), nil).Once()
	f.On("Fetch", mock.Anything, "v8/finance/chart/BAD.NS?interval=1m&range=1d&useYfid=true", true).
		Return(nil, market.ErrQuoteUnavailable).Once()
	src := newTestSource(f)

	got, err := src.Quotes(context.Background(), []string{"reliance", "RELIANCE.NS", "bad"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "RELIANCE.NS")
	f.AssertExpectations(t)

	empty, err := src.Quotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

const candleDoc = `{"chart":{"result":[{
	"meta":{"symbol":"TCS.NS","currency":"INR","exchangeName":"NSI","exchangeTimezoneName":"Asia/Kolkata","regularMarketPrice":3500,"chartPreviousClose":3450,"regularMarketTime":1704270000},
	"timestamp":[1704253500,1704253620,1704253740],
	"indicators":{"quote":[{
		"open":[3460,null,3470],
		"high":[3480,3475,null],
		"low":[3455,3460,3465],
		"close":[3470,null,3490],
		"volume":[1000,2000,null]
	}]}
}],"error":null}}`

func TestCandles(t *testing.T) {
	f := new(mockFetcher)
	f.On("Fetch", mock.Anything, "v8/finance/chart/TCS.NS?interval=15m&range=5d", true).
		Return([]byte(candleDoc), nil).Once()

	meta, candles, err := newTestSource(f).Candles(context.Background(), "tcs", market.Range5D)
	require.NoError(t, err)
	assert.Equal(t, "TCS.NS", meta.Symbol)
	assert.Equal(t, "Asia/Kolkata", meta.Timezone)
	assert.Equal(t, 3450.0, meta.PreviousClose)

	require.Len(t, candles, 2, "bar with null close is dropped")
	assert.Equal(t, market.Candle{Time: 1704253500, Open: 3460, High: 3480, Low: 3455, Close: 3470, Volume: 1000}, candles[0])
	assert.Equal(t, market.Candle{Time: 1704253740, Open: 3470, High: 3490, Low: 3465, Close: 3490, Volume: 0}, candles[1])
}

func TestCandlesErrors(t *testing.T) {
	t.Run("unknown range", func(t *testing.T) {
		f := new(mockFetcher)
		_, _, err := newTestSource(f).Candles(context.Background(), "TCS", market.Range("10y"))
		assert.ErrorIs(t, err, market.ErrInvalidRange)
		f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
	})
	t.Run("no result", func(t *testing.T) {
		f := new(mockFetcher)
		f.On("Fetch", mock.Anything, mock.Anything, true).Return([]byte(`{"chart":{"result":null}}`), nil)
		_, _, err := newTestSource(f).Candles(context.Background(), "TCS", market.Range1D)
		assert.ErrorIs(t, err, market.ErrQuoteUnavailable)
	})
	t.Run("fetch error propagates", func(t *testing.T) {
		f := new(mockFetcher)
		f.On("Fetch", mock.Anything, mock.Anything, true).Return(nil, market.ErrSymbolNotFound)
		_, _, err := newTestSource(f).Candles(context.Background(), "NOPE", market.Range1D)
		assert.ErrorIs(t, err, market.ErrSymbolNotFound)
	})
}

const searchDoc = `{"quotes":[
	{"symbol":"TCS.NS","shortname":"TATA CONSULTANCY SERV LT","quoteType":"EQUITY","exchDisp":"NSE"},
	{"symbol":"TCS.BO","shortname":"TATA CONSULTANCY","quoteType":"EQUITY","exchDisp":"Bombay"},
	{"symbol":"TATAMOTORS.NS","longname":"Tata Motors Limited","quoteType":"EQUITY"},
	{"symbol":"NIFTYBEES.NS","shortname":"Nippon ETF","quoteType":"ETF"}
]}`

func TestSearch(t *testing.T) {
	f := new(mockFetcher)
	f.On("Fetch", mock.Anything, "v1/finance/search?newsCount=0&q=tata&quotesCount=6", true).
		Return([]byte(searchDoc), nil).Once()

	got := newTestSource(f).Search(context.Background(), " tata ")
	assert.Equal(t, []market.SearchResult{
		{Symbol: "TCS.NS", ShortName: "TATA CONSULTANCY SERV LT", Exchange: "NSE", TypeDisplay: "Equity"},
		{Symbol: "TATAMOTORS.NS", ShortName: "Tata Motors Limited", Exchange: "NSE", TypeDisplay: "Equity"},
	}, got)
}

func TestSearchFailsSoft(t *testing.T) {
	f := new(mockFetcher)
	src := newTestSource(f)

	assert.Empty(t, src.Search(context.Background(), "t"))
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)

	f.On("Fetch", mock.Anything, mock.Anything, true).Return(nil, errors.New("boom"))
	got := src.Search(context.Background(), "infosys")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
