package config

import (
	"strings"
	"time"
)

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogFormat     = "text"
	defaultAppHTTPAddr      = ":9991"
	defaultAppLogPath       = "data/logs/inditrade.log"
	defaultMarketSuffix     = ".NS"
	defaultMarketTimezone   = "IST"
	defaultMarketOpen       = "09:15"
	defaultMarketClose      = "15:30"
	defaultRelayCacheTTL    = 2 * time.Second
	defaultRelayOrigin      = "http://localhost"
	defaultBreakerThreshold = 3
	defaultBreakerCooldown  = 30 * time.Second
	defaultRelayConcurrency = 4
	defaultRelayTimeout     = 12 * time.Second
	defaultAccountID        = "user_1"
	defaultAccountEmail     = "trader@example.com"
	defaultAccountName      = "Pro Trader"
	defaultStartingBalance  = "1000000"
	defaultStorageDriver    = StorageSQLite
	defaultStoragePath      = "data/db/inditrade.db"
	defaultStorageKey       = "inditrade_user_v1"
	defaultJournalDriver    = StorageSQLite
	defaultJournalPath      = "data/db/journal.db"
	defaultPollWatchlist    = 5 * time.Second
	defaultPollPortfolio    = 5 * time.Second
	defaultPollSession      = "@every 1m"
)

const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
	StorageNone   = "none"
)

var defaultWatchlist = []string{"RELIANCE.NS", "TCS.NS", "INFY.NS", "HDFCBANK.NS"}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Relay.applyDefaults(keys)
	c.Ledger.applyDefaults(keys)
	c.Storage.applyDefaults(keys)
	c.Poll.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.suffix", &m.Suffix, defaultMarketSuffix),
		stringFieldDefault("market.timezone", &m.Timezone, defaultMarketTimezone),
		stringFieldDefault("market.open", &m.Open, defaultMarketOpen),
		stringFieldDefault("market.close", &m.Close, defaultMarketClose),
	)
	m.Suffix = strings.ToUpper(strings.TrimSpace(m.Suffix))
}

func (r *RelayConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		durationFieldDefault("relay.cache_ttl", &r.CacheTTL, defaultRelayCacheTTL),
		stringFieldDefault("relay.origin", &r.Origin, defaultRelayOrigin),
		durationFieldDefault("relay.breaker_cooldown", &r.BreakerCooldown, defaultBreakerCooldown),
		fieldDefault{
			key:   "relay.breaker_threshold",
			need:  func() bool { return r.BreakerThreshold <= 0 },
			apply: func() { r.BreakerThreshold = defaultBreakerThreshold },
		},
		fieldDefault{
			key:   "relay.concurrency",
			need:  func() bool { return r.Concurrency <= 0 },
			apply: func() { r.Concurrency = defaultRelayConcurrency },
		},
	)
	r.Hosts = normalizeList(r.Hosts, strings.ToLower)
	for i := range r.Relays {
		entry := &r.Relays[i]
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Prefix = strings.TrimSpace(entry.Prefix)
		entry.Mode = strings.ToLower(strings.TrimSpace(entry.Mode))
		if entry.Mode == "" {
			entry.Mode = "raw"
		}
		if entry.Timeout <= 0 {
			entry.Timeout = defaultRelayTimeout
		}
	}
}

func (l *LedgerConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ledger.account_id", &l.AccountID, defaultAccountID),
		stringFieldDefault("ledger.email", &l.Email, defaultAccountEmail),
		stringFieldDefault("ledger.display_name", &l.DisplayName, defaultAccountName),
		stringFieldDefault("ledger.starting_balance", &l.StartingBalance, defaultStartingBalance),
		fieldDefault{
			key:   "ledger.watchlist",
			need:  func() bool { return len(l.Watchlist) == 0 },
			apply: func() { l.Watchlist = append([]string(nil), defaultWatchlist...) },
		},
	)
	l.Watchlist = normalizeList(l.Watchlist, strings.ToUpper)
	if l.Watchlist == nil {
		l.Watchlist = []string{}
	}
}

func (s *StorageConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("storage.driver", &s.Driver, defaultStorageDriver),
		stringFieldDefault("storage.path", &s.Path, defaultStoragePath),
		stringFieldDefault("storage.key", &s.Key, defaultStorageKey),
		stringFieldDefault("storage.journal_driver", &s.JournalDriver, defaultJournalDriver),
		stringFieldDefault("storage.journal_path", &s.JournalPath, defaultJournalPath),
	)
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	s.JournalDriver = strings.ToLower(strings.TrimSpace(s.JournalDriver))
}

func (p *PollConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		durationFieldDefault("poll.watchlist", &p.Watchlist, defaultPollWatchlist),
		durationFieldDefault("poll.portfolio", &p.Portfolio, defaultPollPortfolio),
		stringFieldDefault("poll.session", &p.Session, defaultPollSession),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func durationFieldDefault(key string, target *time.Duration, def time.Duration) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeList(items []string, fold func(string) string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = fold(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
