package relay

import "inditrade/internal/pkg/circuit"

type RelayHealth struct {
	Name    string            `json:"name"`
	Prefix  string            `json:"prefix"`
	Mode    Mode              `json:"mode"`
	Timeout string            `json:"timeout"`
	Sticky  bool              `json:"sticky"`
	Breaker *circuit.Snapshot `json:"breaker,omitempty"`
}

type Health struct {
	Sticky      int           `json:"sticky"`
	CachedPaths int           `json:"cached_paths"`
	Relays      []RelayHealth `json:"relays"`
}

// Health reports the relay rotation as seen by the next call.
func (f *Fetcher) Health() Health {
	f.mu.Lock()
	relays := f.relays
	breakers := f.breakers
	sticky := f.sticky
	f.mu.Unlock()

	out := Health{Sticky: sticky, CachedPaths: f.cache.len(), Relays: make([]RelayHealth, 0, len(relays))}
	for i, r := range relays {
		rh := RelayHealth{
			Name:    r.Name,
			Prefix:  r.Prefix,
			Mode:    r.Mode,
			Timeout: r.Timeout.String(),
			Sticky:  i == sticky,
		}
		if cb := breakers[i]; cb != nil {
			snap := cb.Snapshot()
			rh.Breaker = &snap
		}
		out.Relays = append(out.Relays, rh)
	}
	return out
}
