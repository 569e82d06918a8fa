package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"inditrade/internal/logger"
)

// Poller runs Fetch every Interval and hands results to Apply. Each tick
// fetches in its own goroutine; a result older than the last applied one
// is discarded so a slow response never overwrites fresher data.
type Poller[T any] struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool
	Fetch          func(ctx context.Context) (T, error)
	Apply          func(T)

	seq     atomic.Uint64
	mu      sync.Mutex
	applied uint64
	wg      sync.WaitGroup
}

func (p *Poller[T]) prefix() string {
	if p.Name == "" {
		return "Poller"
	}
	return "Poller[" + p.Name + "]"
}

// Run blocks until ctx is cancelled and every in-flight fetch has returned.
func (p *Poller[T]) Run(ctx context.Context) error {
	if p.Fetch == nil || p.Apply == nil {
		return fmt.Errorf("%s: fetch and apply are required", p.prefix())
	}
	if p.Interval <= 0 {
		return fmt.Errorf("%s: invalid interval=%s", p.prefix(), p.Interval)
	}
	logger.Infof("%s: started interval=%s run_immediately=%v", p.prefix(), p.Interval, p.RunImmediately)
	defer p.wg.Wait()

	if p.RunImmediately {
		p.tick(ctx)
	}
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("%s: ctx done, exit", p.prefix())
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller[T]) tick(ctx context.Context) {
	n := p.seq.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("%s: panic in tick %d: %v\n%s", p.prefix(), n, r, debug.Stack())
			}
		}()
		res, err := p.Fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warnf("%s: tick %d failed: %v", p.prefix(), n, err)
			}
			return
		}
		p.deliver(n, res)
	}()
}

func (p *Poller[T]) deliver(n uint64, res T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= p.applied {
		logger.Debugf("%s: drop stale tick %d (applied %d)", p.prefix(), n, p.applied)
		return
	}
	p.applied = n
	p.Apply(res)
}
