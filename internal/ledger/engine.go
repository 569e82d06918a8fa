package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"inditrade/internal/logger"
	"inditrade/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const slowCommitThreshold = 100 * time.Millisecond

type Options struct {
	Defaults Defaults
	// Events is optional; journal failures are logged and never undo a
	// committed change.
	Events    store.EventStore
	Clock     func() time.Time
	NewID     func() string
	Normalize func(string) string
}

// Engine owns the single local account. Mutations are serialized by mu
// and run validate, apply, persist, commit in that order; readers load the
// last committed snapshot without locking.
type Engine struct {
	mu        sync.Mutex
	snapshots store.SnapshotStore
	events    store.EventStore
	defaults  Defaults
	clock     func() time.Time
	newID     func() string
	normalize func(string) string

	current atomic.Pointer[Account]
}

func NewEngine(snapshots store.SnapshotStore, opts Options) (*Engine, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("ledger requires a snapshot store")
	}
	if opts.Defaults.AccountID == "" {
		opts.Defaults = DefaultSettings()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Normalize == nil {
		opts.Normalize = func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
	}
	return &Engine{
		snapshots: snapshots,
		events:    opts.Events,
		defaults:  opts.Defaults,
		clock:     opts.Clock,
		newID:     opts.NewID,
		normalize: opts.Normalize,
	}, nil
}

// Load reads the stored snapshot, heals it and makes it current. A missing
// or unreadable snapshot is replaced by the default account.
func (e *Engine) Load(ctx context.Context) (Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw, err := e.snapshots.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		acct := NewAccount(e.defaults)
		if err := e.persist(ctx, acct); err != nil {
			return Account{}, err
		}
		e.commit(acct)
		e.journal(ctx, store.EventAccountCreated, acct.ID, nil)
		logger.Infof("ledger: created account %s with balance %s", acct.ID, acct.Balance.StringFixed(2))
		return acct.Clone(), nil
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Account{}, ctxErr
		}
		logger.Errorf("ledger: snapshot load failed, starting from defaults: %v", err)
		raw = nil
	}

	acct, repairs := Decode(raw, e.defaults)
	if len(repairs) > 0 {
		logger.Warnf("ledger: healed snapshot sections %s", strings.Join(repairs, ","))
		if err := e.persist(ctx, acct); err != nil {
			return Account{}, err
		}
		e.journal(ctx, store.EventAccountHealed, acct.ID, map[string]any{"repairs": repairs})
	}
	e.commit(acct)
	return acct.Clone(), nil
}

// Account returns a copy of the last committed snapshot.
func (e *Engine) Account() (Account, error) {
	cur := e.current.Load()
	if cur == nil {
		return Account{}, ErrNotLoaded
	}
	return cur.Clone(), nil
}

func (e *Engine) ExecuteOrder(ctx context.Context, o Order) (Account, Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	cur := e.current.Load()
	if cur == nil {
		return Account{}, Trade{}, ErrNotLoaded
	}
	o.Symbol = e.normalize(o.Symbol)
	o.Side = Side(strings.ToUpper(strings.TrimSpace(string(o.Side))))
	if strings.TrimSpace(o.ID) == "" {
		o.ID = e.newID()
	}
	next, trade, err := Apply(*cur, o, e.clock())
	if err != nil {
		return Account{}, Trade{}, err
	}
	if err := e.persist(ctx, next); err != nil {
		return Account{}, Trade{}, err
	}
	e.commit(next)
	e.journal(ctx, store.EventOrderExecuted, next.ID, trade)
	logger.Infof("ledger: %s %d %s @ %s (balance %s)",
		trade.Side, trade.Quantity, trade.Symbol, trade.Price.StringFixed(2), next.Balance.StringFixed(2))
	if dur := time.Since(start); dur > slowCommitThreshold {
		logger.Warnf("ledger: slow order commit %s took %v", trade.ID, dur)
	}
	return next.Clone(), trade, nil
}

// ToggleWatchlist adds symbol to the watchlist or removes it when present.
// The boolean reports whether it was added.
func (e *Engine) ToggleWatchlist(ctx context.Context, symbol string) (Account, bool, error) {
	sym := e.normalize(symbol)
	if sym == "" {
		return Account{}, false, ErrInvalidSymbol
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current.Load()
	if cur == nil {
		return Account{}, false, ErrNotLoaded
	}
	next, added := cur.toggle(sym)
	if err := e.persist(ctx, next); err != nil {
		return Account{}, false, err
	}
	e.commit(next)
	e.journal(ctx, store.EventWatchlistToggled, next.ID, map[string]any{"symbol": sym, "added": added})
	return next.Clone(), added, nil
}

// Reset replaces the account with the default snapshot.
func (e *Engine) Reset(ctx context.Context) (Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct := NewAccount(e.defaults)
	if err := e.persist(ctx, acct); err != nil {
		return Account{}, err
	}
	e.commit(acct)
	e.journal(ctx, store.EventAccountReset, acct.ID, nil)
	logger.Infof("ledger: account %s reset", acct.ID)
	return acct.Clone(), nil
}

// Valuation marks the current account to the given prices.
func (e *Engine) Valuation(prices map[string]decimal.Decimal) (Valuation, error) {
	cur := e.current.Load()
	if cur == nil {
		return Valuation{}, ErrNotLoaded
	}
	return cur.Value(prices), nil
}

func (e *Engine) persist(ctx context.Context, a Account) error {
	raw, err := Encode(a)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	if err := e.snapshots.Save(ctx, raw); err != nil {
		return fmt.Errorf("persist account: %w", err)
	}
	return nil
}

func (e *Engine) commit(a Account) {
	e.current.Store(&a)
}

func (e *Engine) journal(ctx context.Context, typ store.EventType, accountID string, payload any) {
	if e.events == nil {
		return
	}
	evt := store.Event{
		ID:        e.newID(),
		Type:      typ,
		AccountID: accountID,
		CreatedAt: e.clock().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			logger.Warnf("ledger: encode %s event failed: %v", typ, err)
			return
		}
		evt.Payload = raw
	}
	if err := e.events.Append(ctx, evt); err != nil {
		logger.Errorf("ledger: journal %s failed: %v", typ, err)
	}
}
