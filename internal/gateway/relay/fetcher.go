package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"inditrade/internal/logger"
	"inditrade/internal/market"
	"inditrade/internal/pkg/circuit"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheTTL     = 2 * time.Second
	maxResponseBytes    = 8 << 20
	defaultBreakerLimit = 3
)

// Doer is the subset of *http.Client the fetcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	Relays   []Relay
	Hosts    []string
	CacheTTL time.Duration
	Origin   string

	// BreakerThreshold consecutive failures open a relay's breaker.
	// Zero disables breakers.
	BreakerThreshold int
	BreakerCooldown  time.Duration

	Client   Doer
	Clock    func() time.Time
	PickHost func(hosts []string) string
}

// Fetcher retrieves upstream JSON through an ordered list of relays. It
// remembers the relay that last succeeded and starts there on the next
// call, and it caches validated documents for a short TTL.
type Fetcher struct {
	client   Doer
	clock    func() time.Time
	pickHost func([]string) string
	hosts    []string
	origin   string

	threshold int
	cooldown  time.Duration

	mu         sync.Mutex
	relays     []Relay
	breakers   []*circuit.CircuitBreaker
	sticky     int
	generation uint64

	cache *responseCache
	group singleflight.Group
}

func NewFetcher(opts Options) (*Fetcher, error) {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PickHost == nil {
		opts.PickHost = randomHost
	}
	if len(opts.Hosts) == 0 {
		opts.Hosts = DefaultHosts()
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.BreakerThreshold < 0 {
		opts.BreakerThreshold = defaultBreakerLimit
	}
	f := &Fetcher{
		client:    opts.Client,
		clock:     opts.Clock,
		pickHost:  opts.PickHost,
		hosts:     append([]string(nil), opts.Hosts...),
		origin:    strings.TrimSpace(opts.Origin),
		threshold: opts.BreakerThreshold,
		cooldown:  opts.BreakerCooldown,
		cache:     newResponseCache(opts.CacheTTL, opts.Clock),
	}
	if err := f.SetRelays(opts.Relays); err != nil {
		return nil, err
	}
	return f, nil
}

// SetRelays replaces the relay list, rebuilds breakers and resets the
// sticky index to the first relay.
func (f *Fetcher) SetRelays(relays []Relay) error {
	if len(relays) == 0 {
		return errNoRelays
	}
	next := make([]Relay, 0, len(relays))
	for _, r := range relays {
		r = r.normalized()
		if err := r.validate(); err != nil {
			return err
		}
		next = append(next, r)
	}
	breakers := make([]*circuit.CircuitBreaker, len(next))
	if f.threshold > 0 {
		for i, r := range next {
			cb := circuit.NewCircuitBreaker("relay:"+r.Name, f.threshold, f.cooldown)
			cb.SetClock(f.clock)
			breakers[i] = cb
		}
	}
	f.mu.Lock()
	f.relays = next
	f.breakers = breakers
	f.sticky = 0
	f.generation++
	f.mu.Unlock()
	logger.Infof("relay fetcher using %d relays", len(next))
	return nil
}

// Sticky returns the index of the relay that will be tried first.
func (f *Fetcher) Sticky() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sticky
}

// Fetch returns the validated upstream document for path. With allowCache
// a fresh cached copy short-circuits the network, and concurrent callers
// for the same path share one in-flight request. The returned slice must
// not be modified.
func (f *Fetcher) Fetch(ctx context.Context, path string, allowCache bool) ([]byte, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if !allowCache {
		return f.fetchThroughRelays(ctx, path)
	}
	if body, ok := f.cache.get(path); ok {
		logger.Debugf("relay cache hit path=%s", path)
		return body, nil
	}
	// The shared flight outlives any single caller; each attempt is still
	// bounded by its relay timeout.
	flightCtx := context.WithoutCancel(ctx)
	ch := f.group.DoChan(path, func() (any, error) {
		if body, ok := f.cache.get(path); ok {
			return body, nil
		}
		return f.fetchThroughRelays(flightCtx, path)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, &FetchError{Path: path, Timeout: true, Last: ctx.Err()}
	}
}

type plannedAttempt struct {
	index   int
	relay   Relay
	breaker *circuit.CircuitBreaker
}

// plan orders relays starting at the sticky index. Relays whose breaker
// is open are moved to the end so each relay is still tried once.
func (f *Fetcher) plan() ([]plannedAttempt, uint64) {
	f.mu.Lock()
	relays := f.relays
	breakers := f.breakers
	start := f.sticky
	gen := f.generation
	f.mu.Unlock()

	n := len(relays)
	ready := make([]plannedAttempt, 0, n)
	var deferred []plannedAttempt
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		at := plannedAttempt{index: idx, relay: relays[idx], breaker: breakers[idx]}
		if at.breaker != nil && !at.breaker.Allow() {
			deferred = append(deferred, at)
			continue
		}
		ready = append(ready, at)
	}
	return append(ready, deferred...), gen
}

func (f *Fetcher) fetchThroughRelays(ctx context.Context, path string) ([]byte, error) {
	attempts, gen := f.plan()
	if len(attempts) == 0 {
		return nil, &FetchError{Path: path, Last: errNoRelays}
	}
	var last *attemptError
	tried := 0
	for _, at := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Path: path, Timeout: true, Attempts: tried, Last: err}
		}
		tried++
		body, err := f.attempt(ctx, at.relay, path)
		if err == nil {
			f.markSuccess(at, gen)
			f.cache.put(path, body)
			return body, nil
		}
		if errors.Is(err, market.ErrSymbolNotFound) {
			// Breaker state is left as is: the relay answered, but the
			// document never passed full validation.
			return nil, fmt.Errorf("%s: %w", path, market.ErrSymbolNotFound)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The caller gave up; that says nothing about the relay.
			return nil, &FetchError{Path: path, Timeout: true, Attempts: tried, Last: ctxErr}
		}
		if at.breaker != nil {
			at.breaker.RecordFailure()
		}
		errors.As(err, &last)
		logger.Debugf("relay %s failed path=%s: %v", at.relay.Name, path, err)
	}
	fe := &FetchError{Path: path, Attempts: tried}
	if last != nil {
		fe.Timeout = last.timeout
		fe.Last = last
	}
	logger.Warnf("all %d relays failed path=%s: %v", tried, path, fe)
	return nil, fe
}

func (f *Fetcher) markSuccess(at plannedAttempt, gen uint64) {
	if at.breaker != nil {
		at.breaker.RecordSuccess()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation != gen {
		return
	}
	if f.sticky != at.index {
		logger.Infof("sticky relay -> %s", at.relay.Name)
	}
	f.sticky = at.index
}

func (f *Fetcher) attempt(ctx context.Context, r Relay, path string) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	fail := func(err error) error {
		return &attemptError{relay: r.Name, timeout: isTimeout(actx, err), err: err}
	}
	target := f.targetURL(path)
	req, err := http.NewRequestWithContext(actx, http.MethodGet, r.Prefix+url.QueryEscape(target), nil)
	if err != nil {
		return nil, fail(err)
	}
	req.Header.Set("Accept", "application/json")
	if f.origin != "" {
		req.Header.Set("Origin", f.origin)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fail(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fail(&statusError{Code: resp.StatusCode})
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fail(err)
	}
	doc, err := decodeBody(r.Mode, raw)
	if err != nil {
		if errors.Is(err, market.ErrSymbolNotFound) {
			return nil, err
		}
		return nil, fail(err)
	}
	return doc, nil
}

func (f *Fetcher) targetURL(path string) string {
	host := f.pickHost(f.hosts)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "https://" + host + "/" + path + sep + "_t=" + strconv.FormatInt(f.clock().UnixMilli(), 10)
}

// upstreamErrorPaths lists where the provider reports errors inside a
// successful HTTP response.
var upstreamErrorPaths = []string{"chart.error", "quoteResponse.error", "finance.error"}

// decodeBody unwraps the relay envelope and classifies the document.
func decodeBody(mode Mode, raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errEmptyBody
	}
	doc := raw
	if mode == ModeWrapper {
		if !gjson.ValidBytes(raw) {
			return nil, errMalformedBody
		}
		contents := gjson.GetBytes(raw, "contents")
		switch {
		case contents.Type == gjson.String:
			doc = bytes.TrimSpace([]byte(contents.Str))
		case contents.IsObject():
			doc = []byte(contents.Raw)
		default:
			return nil, errMalformedBody
		}
		if len(doc) == 0 {
			return nil, errEmptyBody
		}
	}
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return nil, errMalformedBody
	}
	for _, p := range upstreamErrorPaths {
		res := gjson.GetBytes(doc, p)
		if !res.Exists() || res.Type == gjson.Null {
			continue
		}
		ue := &upstreamError{
			Code:        res.Get("code").String(),
			Description: res.Get("description").String(),
		}
		if strings.EqualFold(ue.Code, "Not Found") {
			return nil, fmt.Errorf("%w: %s", market.ErrSymbolNotFound, ue.Description)
		}
		return nil, ue
	}
	return doc, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func randomHost(hosts []string) string {
	if len(hosts) == 0 {
		return DefaultHosts()[0]
	}
	return hosts[rand.Intn(len(hosts))]
}
