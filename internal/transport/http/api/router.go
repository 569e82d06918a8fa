package apihttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inditrade/internal/feed"
	"inditrade/internal/gateway/relay"
	"inditrade/internal/ledger"
	"inditrade/internal/market"
	"inditrade/internal/pkg/symbol"
	"inditrade/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	defaultTradesLimit  = 50
	defaultJournalLimit = 100
	maxListLimit        = 500
	quoteLookupTimeout  = 20 * time.Second
)

// LedgerService is the account surface the API drives.
type LedgerService interface {
	Account() (ledger.Account, error)
	ExecuteOrder(ctx context.Context, o ledger.Order) (ledger.Account, ledger.Trade, error)
	ToggleWatchlist(ctx context.Context, symbol string) (ledger.Account, bool, error)
	Reset(ctx context.Context) (ledger.Account, error)
}

// RelayMonitor reports fetcher health.
type RelayMonitor interface {
	Health() relay.Health
}

// Deps 汇总 Router 需要的组件；Board、Relays、Journal 可为空。
type Deps struct {
	Ledger    LedgerService
	Market    market.Source
	Calendar  market.Calendar
	Board     *feed.Board
	Relays    RelayMonitor
	Journal   store.EventStore
	Normalize func(string) string
	Clock     func() time.Time
}

// Router 暴露 /api 下的接口。
type Router struct {
	deps Deps
}

func NewRouter(deps Deps) *Router {
	if deps.Normalize == nil {
		deps.Normalize = symbol.Normalize
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Calendar.Location == nil {
		deps.Calendar = market.NewCalendar()
	}
	return &Router{deps: deps}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/market/status", r.handleMarketStatus)
	group.GET("/quotes", r.handleQuotes)
	group.GET("/quotes/:symbol", r.handleQuote)
	group.GET("/candles/:symbol", r.handleCandles)
	group.GET("/search", r.handleSearch)
	group.GET("/account", r.handleAccount)
	group.POST("/account/reset", r.handleReset)
	group.GET("/portfolio", r.handlePortfolio)
	group.GET("/trades", r.handleTrades)
	group.POST("/orders", r.handleOrder)
	group.POST("/watchlist/:symbol/toggle", r.handleToggleWatchlist)
	if r.deps.Relays != nil {
		group.GET("/relays", r.handleRelays)
	}
	if r.deps.Journal != nil {
		group.GET("/journal", r.handleJournal)
	}
}

func (r *Router) handleMarketStatus(c *gin.Context) {
	now := r.deps.Clock()
	cal := r.deps.Calendar
	c.JSON(http.StatusOK, gin.H{
		"open":      cal.IsOpen(now),
		"state":     cal.State(now),
		"next_open": cal.NextOpen(now),
		"now":       now.In(cal.Location),
	})
}

func (r *Router) handleQuote(c *gin.Context) {
	q, err := r.deps.Market.Quote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	if r.deps.Board != nil {
		r.deps.Board.Merge(map[string]market.Quote{q.Symbol: q})
	}
	c.JSON(http.StatusOK, q)
}

func (r *Router) handleQuotes(c *gin.Context) {
	symbols := splitSymbols(c.QueryArray("symbols"))
	if len(symbols) == 0 {
		badRequest(c, "symbols query parameter is required")
		return
	}
	quotes, err := r.deps.Market.Quotes(c.Request.Context(), symbols)
	if err != nil {
		writeError(c, err)
		return
	}
	if r.deps.Board != nil {
		r.deps.Board.Merge(quotes)
	}
	missing := []string{}
	seen := make(map[string]bool)
	for _, raw := range symbols {
		sym := r.deps.Normalize(raw)
		if _, ok := quotes[sym]; ok || seen[sym] {
			continue
		}
		seen[sym] = true
		missing = append(missing, sym)
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes, "missing": missing})
}

func (r *Router) handleCandles(c *gin.Context) {
	rng, err := market.ParseRange(strings.ToLower(c.DefaultQuery("range", string(market.Range1D))))
	if err != nil {
		writeError(c, err)
		return
	}
	meta, candles, err := r.deps.Market.Candles(c.Request.Context(), c.Param("symbol"), rng)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meta": meta, "range": rng, "candles": candles})
}

func (r *Router) handleSearch(c *gin.Context) {
	results := r.deps.Market.Search(c.Request.Context(), c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (r *Router) handleAccount(c *gin.Context) {
	acct, err := r.deps.Ledger.Account()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (r *Router) handleReset(c *gin.Context) {
	acct, err := r.deps.Ledger.Reset(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

// handlePortfolio values holdings at the board's prices, fetching any
// symbol the board has not seen yet.
func (r *Router) handlePortfolio(c *gin.Context) {
	acct, err := r.deps.Ledger.Account()
	if err != nil {
		writeError(c, err)
		return
	}
	symbols := feed.PortfolioSymbols(acct)
	quotes := map[string]market.Quote{}
	missing := symbols
	if r.deps.Board != nil {
		quotes, missing = r.deps.Board.Lookup(symbols)
	}
	if len(missing) > 0 {
		fetched, err := r.deps.Market.Quotes(c.Request.Context(), missing)
		if err != nil {
			writeError(c, err)
			return
		}
		for sym, q := range fetched {
			quotes[sym] = q
		}
		if r.deps.Board != nil {
			r.deps.Board.Merge(fetched)
		}
	}
	c.JSON(http.StatusOK, acct.Value(feed.PriceMap(quotes)))
}

func (r *Router) handleTrades(c *gin.Context) {
	limit, ok := parseLimit(c, defaultTradesLimit)
	if !ok {
		return
	}
	acct, err := r.deps.Ledger.Account()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": acct.RecentTrades(limit), "total": len(acct.Trades)})
}

type orderRequest struct {
	ID       string           `json:"id"`
	Symbol   string           `json:"symbol"`
	Side     string           `json:"side"`
	Quantity int64            `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

func (r *Router) handleOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid order payload: "+err.Error())
		return
	}
	order := ledger.Order{
		ID:       strings.TrimSpace(req.ID),
		Symbol:   r.deps.Normalize(req.Symbol),
		Side:     ledger.Side(strings.ToUpper(strings.TrimSpace(req.Side))),
		Quantity: req.Quantity,
	}
	switch {
	case order.Symbol == "":
		writeError(c, ledger.ErrInvalidSymbol)
		return
	case !order.Side.Valid():
		writeError(c, ledger.ErrInvalidSide)
		return
	case order.Quantity <= 0:
		writeError(c, ledger.ErrInvalidQuantity)
		return
	}

	if req.Price != nil {
		order.Price = *req.Price
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), quoteLookupTimeout)
		q, err := r.deps.Market.Quote(ctx, order.Symbol)
		cancel()
		if err != nil {
			writeError(c, err)
			return
		}
		order.Price = q.Price
		if r.deps.Board != nil {
			r.deps.Board.Merge(map[string]market.Quote{q.Symbol: q})
		}
	}

	acct, trade, err := r.deps.Ledger.ExecuteOrder(c.Request.Context(), order)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trade": trade, "account": acct})
}

func (r *Router) handleToggleWatchlist(c *gin.Context) {
	acct, added, err := r.deps.Ledger.ToggleWatchlist(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added, "watchlist": acct.Watchlist})
}

func (r *Router) handleRelays(c *gin.Context) {
	c.JSON(http.StatusOK, r.deps.Relays.Health())
}

func (r *Router) handleJournal(c *gin.Context) {
	limit, ok := parseLimit(c, defaultJournalLimit)
	if !ok {
		return
	}
	events, err := r.deps.Journal.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func parseLimit(c *gin.Context, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}

// splitSymbols accepts both ?symbols=A,B and repeated ?symbols= params.
func splitSymbols(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
