package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inditrade/internal/config"
	"inditrade/internal/feed"
	"inditrade/internal/gateway/relay"
	"inditrade/internal/gateway/yahoo"
	"inditrade/internal/ledger"
	"inditrade/internal/logger"
	"inditrade/internal/pkg/symbol"
	"inditrade/internal/scheduler"
	"inditrade/internal/store"
	filestore "inditrade/internal/store/file"
	"inditrade/internal/store/journal"
	"inditrade/internal/store/sqlite"
	apihttp "inditrade/internal/transport/http/api"
)

type AppBuilder struct {
	cfg *config.Config

	snapshotStoreFn func(config.StorageConfig) (store.SnapshotStore, error)
	eventStoreFn    func(config.StorageConfig) (store.EventStore, error)
	httpClient      relay.Doer
}

type AppBuilderOption func(*AppBuilder)

// WithHTTPClient replaces the client the relay fetcher uses.
func WithHTTPClient(c relay.Doer) AppBuilderOption {
	return func(b *AppBuilder) { b.httpClient = c }
}

// WithSnapshotStore injects a snapshot store instead of opening one from config.
func WithSnapshotStore(s store.SnapshotStore) AppBuilderOption {
	return func(b *AppBuilder) {
		b.snapshotStoreFn = func(config.StorageConfig) (store.SnapshotStore, error) { return s, nil }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:             cfg,
		snapshotStoreFn: buildSnapshotStore,
		eventStoreFn:    buildEventStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg
	cal := cfg.Market.Calendar()
	norm := symbol.NewNormalizer(cfg.Market.Suffix)

	snapshots, err := b.snapshotStoreFn(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	app := &App{cfg: cfg, snapshots: snapshots}
	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	events, err := b.eventStoreFn(cfg.Storage)
	if err != nil {
		return fail(fmt.Errorf("open event journal: %w", err))
	}
	app.events = events

	fetcher, registry, err := b.buildFetcher(cfg.Relay)
	if err != nil {
		return fail(err)
	}
	app.fetcher = fetcher
	app.registry = registry

	source := yahoo.New(fetcher, yahoo.Options{
		Calendar:    cal,
		Normalizer:  norm,
		Concurrency: cfg.Relay.Concurrency,
	})
	app.source = source

	engine, err := ledger.NewEngine(snapshots, ledger.Options{
		Defaults:  cfg.Ledger.Defaults(),
		Events:    events,
		Normalize: norm.Normalize,
	})
	if err != nil {
		return fail(err)
	}
	if _, err := engine.Load(ctx); err != nil {
		return fail(fmt.Errorf("load account: %w", err))
	}
	app.engine = engine

	board := feed.NewBoard()
	app.board = board
	app.pollers = []runner{
		feed.NewPoller("watchlist", cfg.Poll.Watchlist, source, engine, board, feed.WatchlistSymbols),
		feed.NewPoller("portfolio", cfg.Poll.Portfolio, source, engine, board, feed.PortfolioSymbols),
	}
	app.session = scheduler.NewSessionWatcher(cal, cfg.Poll.Session)

	deps := apihttp.Deps{
		Ledger:    engine,
		Market:    source,
		Calendar:  cal,
		Board:     board,
		Relays:    fetcher,
		Normalize: norm.Normalize,
	}
	if events != nil {
		deps.Journal = events
	}
	srv, err := apihttp.NewServer(apihttp.ServerConfig{Addr: cfg.App.HTTPAddr, Deps: deps})
	if err != nil {
		return fail(err)
	}
	app.http = srv
	app.Summary = buildSummary(cfg, fetcher.Health())
	return app, nil
}

func (b *AppBuilder) buildFetcher(cfg config.RelayConfig) (*relay.Fetcher, *relay.Registry, error) {
	relays := cfg.RelayList()
	var registry *relay.Registry
	if path := strings.TrimSpace(cfg.RegistryPath); path != "" {
		reg, err := relay.NewRegistry(path)
		if err != nil {
			return nil, nil, fmt.Errorf("load relay registry: %w", err)
		}
		registry = reg
		relays = reg.Relays()
	}
	fetcher, err := relay.NewFetcher(relay.Options{
		Relays:           relays,
		Hosts:            cfg.HostList(),
		CacheTTL:         cfg.CacheTTL,
		Origin:           cfg.Origin,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
		Client:           b.httpClient,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build relay fetcher: %w", err)
	}
	if registry != nil {
		registry.OnChange(func(s relay.Snapshot) {
			if err := fetcher.SetRelays(s.Relays); err != nil {
				logger.Errorf("apply relay registry v%d failed: %v", s.Version, err)
				return
			}
			logger.Infof("relay registry v%d applied (%d relays)", s.Version, len(s.Relays))
		})
		if err := registry.Watch(); err != nil {
			logger.Warnf("relay registry watch disabled: %v", err)
		}
	}
	return fetcher, registry, nil
}

func buildSnapshotStore(cfg config.StorageConfig) (store.SnapshotStore, error) {
	if err := ensureDir(cfg.Path); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case config.StorageFile:
		return filestore.NewSnapshotStore(cfg.Path)
	default:
		return sqlite.NewSnapshotStore(cfg.Path, cfg.Key)
	}
}

func buildEventStore(cfg config.StorageConfig) (store.EventStore, error) {
	if cfg.JournalDriver == config.StorageNone {
		return nil, nil
	}
	if err := ensureDir(cfg.JournalPath); err != nil {
		return nil, err
	}
	switch cfg.JournalDriver {
	case config.StorageFile:
		return filestore.NewEventStore(cfg.JournalPath)
	default:
		return journal.Open(cfg.JournalPath)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(strings.TrimSpace(path))
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
