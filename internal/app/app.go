package app

import (
	"context"
	"errors"
	"fmt"

	"inditrade/internal/config"
	"inditrade/internal/feed"
	"inditrade/internal/gateway/relay"
	"inditrade/internal/ledger"
	"inditrade/internal/logger"
	"inditrade/internal/market"
	"inditrade/internal/scheduler"
	"inditrade/internal/store"
	apihttp "inditrade/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动轮询与 HTTP 服务。
type App struct {
	cfg *config.Config

	snapshots store.SnapshotStore
	events    store.EventStore
	fetcher   *relay.Fetcher
	registry  *relay.Registry
	source    market.Source
	engine    *ledger.Engine
	board     *feed.Board
	pollers   []runner
	session   *scheduler.SessionWatcher
	http      *apihttp.Server

	Summary *StartupSummary
}

type runner interface {
	Run(ctx context.Context) error
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return NewAppBuilder(cfg, opts...).Build(ctx)
}

// Run 启动 HTTP 服务、行情轮询与交易时段监控，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	for _, p := range a.pollers {
		p := p
		group.Go(func() error { return p.Run(ctx) })
	}
	if a.session != nil {
		group.Go(func() error { return a.session.Run(ctx) })
	}
	return group.Wait()
}

// Close releases the stores. Safe to call more than once.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
		a.events = nil
	}
	if a.snapshots != nil {
		errs = append(errs, a.snapshots.Close())
		a.snapshots = nil
	}
	return errors.Join(errs...)
}

// Engine exposes the ledger for harnesses.
func (a *App) Engine() *ledger.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Server exposes the HTTP server for harnesses.
func (a *App) Server() *apihttp.Server {
	if a == nil {
		return nil
	}
	return a.http
}
