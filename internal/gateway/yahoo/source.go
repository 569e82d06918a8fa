package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"inditrade/internal/logger"
	"inditrade/internal/market"
	"inditrade/internal/pkg/symbol"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 6
	defaultCurrency    = "INR"
	defaultExchange    = "NSE"
	searchMinChars     = 2
	searchQuotesCount  = 6
)

// Fetcher returns a validated upstream JSON document for a request path.
type Fetcher interface {
	Fetch(ctx context.Context, path string, allowCache bool) ([]byte, error)
}

type Options struct {
	Calendar    market.Calendar
	Normalizer  symbol.Normalizer
	Clock       func() time.Time
	Concurrency int
}

// Source translates chart and search documents into market records.
type Source struct {
	fetcher     Fetcher
	calendar    market.Calendar
	normalizer  symbol.Normalizer
	clock       func() time.Time
	concurrency int
}

var _ market.Source = (*Source)(nil)

func New(fetcher Fetcher, opts Options) *Source {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Calendar.Location == nil {
		opts.Calendar = market.NewCalendar()
	}
	if opts.Normalizer.Suffix == "" {
		opts.Normalizer = symbol.NewNormalizer(symbol.DefaultSuffix)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Source{
		fetcher:     fetcher,
		calendar:    opts.Calendar,
		normalizer:  opts.Normalizer,
		clock:       opts.Clock,
		concurrency: opts.Concurrency,
	}
}

func (s *Source) Normalize(sym string) string {
	return s.normalizer.Normalize(sym)
}

func chartPath(sym string, params url.Values) string {
	return "v8/finance/chart/" + url.PathEscape(sym) + "?" + params.Encode()
}

func (s *Source) Quote(ctx context.Context, raw string) (market.Quote, error) {
	sym := s.normalizer.Normalize(raw)
	if sym == "" {
		return market.Quote{}, fmt.Errorf("empty symbol: %w", market.ErrSymbolNotFound)
	}
	params := url.Values{}
	params.Set("interval", "1m")
	params.Set("range", "1d")
	params.Set("useYfid", "true")
	body, err := s.fetcher.Fetch(ctx, chartPath(sym, params), true)
	if err != nil {
		return market.Quote{}, fmt.Errorf("quote %s: %w", sym, err)
	}
	return s.parseQuote(sym, body)
}

func (s *Source) parseQuote(sym string, body []byte) (market.Quote, error) {
	meta := gjson.GetBytes(body, "chart.result.0.meta")
	if !meta.IsObject() {
		return market.Quote{}, fmt.Errorf("quote %s: no meta: %w", sym, market.ErrQuoteUnavailable)
	}
	price := meta.Get("regularMarketPrice")
	if price.Type != gjson.Number || price.Float() <= 0 {
		return market.Quote{}, fmt.Errorf("quote %s: missing price: %w", sym, market.ErrQuoteUnavailable)
	}
	prev := meta.Get("chartPreviousClose")
	if prev.Type != gjson.Number {
		prev = meta.Get("previousClose")
	}
	if prev.Type != gjson.Number || prev.Float() <= 0 {
		return market.Quote{}, fmt.Errorf("quote %s: missing previous close: %w", sym, market.ErrQuoteUnavailable)
	}

	if upstream := strings.TrimSpace(meta.Get("symbol").String()); upstream != "" {
		sym = strings.ToUpper(upstream)
	}
	q := market.NewQuote(sym, decimal.NewFromFloat(price.Float()), decimal.NewFromFloat(prev.Float()))
	now := s.clock()
	q.Timestamp = now
	if ts := meta.Get("regularMarketTime"); ts.Type == gjson.Number {
		q.Timestamp = time.Unix(ts.Int(), 0).UTC()
	}
	q.Currency = meta.Get("currency").String()
	if q.Currency == "" {
		q.Currency = defaultCurrency
	}
	q.Volume = meta.Get("regularMarketVolume").Int()
	q.MarketState = s.calendar.State(now)
	return q, nil
}

// Quotes fetches several symbols concurrently. Symbols that fail are
// logged and left out of the result.
func (s *Source) Quotes(ctx context.Context, symbols []string) (map[string]market.Quote, error) {
	unique := s.normalizer.NormalizeList(symbols)
	out := make(map[string]market.Quote, len(unique))
	if len(unique) == 0 {
		return out, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, sym := range unique {
		sym := sym
		g.Go(func() error {
			q, err := s.Quote(gctx, sym)
			if err != nil {
				logger.Warnf("quote %s skipped: %v", sym, err)
				return nil
			}
			mu.Lock()
			out[sym] = q
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Source) Candles(ctx context.Context, raw string, r market.Range) (market.ChartMeta, []market.Candle, error) {
	interval, ok := r.Interval()
	if !ok {
		return market.ChartMeta{}, nil, &market.RangeError{Range: string(r)}
	}
	sym := s.normalizer.Normalize(raw)
	if sym == "" {
		return market.ChartMeta{}, nil, fmt.Errorf("empty symbol: %w", market.ErrSymbolNotFound)
	}
	params := url.Values{}
	params.Set("interval", interval)
	params.Set("range", string(r))
	body, err := s.fetcher.Fetch(ctx, chartPath(sym, params), true)
	if err != nil {
		return market.ChartMeta{}, nil, fmt.Errorf("candles %s: %w", sym, err)
	}
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.IsObject() {
		return market.ChartMeta{}, nil, fmt.Errorf("candles %s: no result: %w", sym, market.ErrQuoteUnavailable)
	}
	return parseMeta(sym, result.Get("meta")), parseCandles(result), nil
}

func parseMeta(sym string, meta gjson.Result) market.ChartMeta {
	out := market.ChartMeta{
		Symbol:             meta.Get("symbol").String(),
		Currency:           meta.Get("currency").String(),
		ExchangeName:       meta.Get("exchangeName").String(),
		Timezone:           meta.Get("exchangeTimezoneName").String(),
		RegularMarketPrice: meta.Get("regularMarketPrice").Float(),
		PreviousClose:      meta.Get("chartPreviousClose").Float(),
		RegularMarketTime:  meta.Get("regularMarketTime").Int(),
	}
	if out.Symbol == "" {
		out.Symbol = sym
	}
	if out.PreviousClose == 0 {
		out.PreviousClose = meta.Get("previousClose").Float()
	}
	return out
}

// parseCandles keeps bars with a close and back-fills open, high and low
// from it.
func parseCandles(result gjson.Result) []market.Candle {
	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	candles := make([]market.Candle, 0, len(timestamps))
	for i, ts := range timestamps {
		cl, ok := numberAt(closes, i)
		if !ok {
			continue
		}
		c := market.Candle{Time: ts.Int(), Open: cl, High: cl, Low: cl, Close: cl}
		if v, ok := numberAt(opens, i); ok {
			c.Open = v
		}
		if v, ok := numberAt(highs, i); ok {
			c.High = v
		}
		if v, ok := numberAt(lows, i); ok {
			c.Low = v
		}
		if v, ok := numberAt(volumes, i); ok {
			c.Volume = v
		}
		candles = append(candles, c)
	}
	return candles
}

func numberAt(values []gjson.Result, i int) (float64, bool) {
	if i >= len(values) || values[i].Type != gjson.Number {
		return 0, false
	}
	return values[i].Float(), true
}

// Search returns local-exchange equities matching query. It never fails.
func (s *Source) Search(ctx context.Context, query string) []market.SearchResult {
	query = strings.TrimSpace(query)
	out := []market.SearchResult{}
	if len([]rune(query)) < searchMinChars {
		return out
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", fmt.Sprint(searchQuotesCount))
	params.Set("newsCount", "0")
	body, err := s.fetcher.Fetch(ctx, "v1/finance/search?"+params.Encode(), true)
	if err != nil {
		logger.Debugf("search %q failed: %v", query, err)
		return out
	}
	for _, q := range gjson.GetBytes(body, "quotes").Array() {
		sym := q.Get("symbol").String()
		if sym == "" || !s.normalizer.HasSuffix(sym) || q.Get("quoteType").String() != "EQUITY" {
			continue
		}
		out = append(out, market.SearchResult{
			Symbol:      sym,
			ShortName:   firstNonEmpty(q.Get("shortname").String(), q.Get("longname").String(), sym),
			Exchange:    firstNonEmpty(q.Get("exchDisp").String(), defaultExchange),
			TypeDisplay: "Equity",
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
