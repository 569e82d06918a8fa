package config

import (
	"strings"
	"time"
)

// Config 是 inditrade 的主配置载体。
type Config struct {
	App     AppConfig     `toml:"app"`
	Market  MarketConfig  `toml:"market"`
	Relay   RelayConfig   `toml:"relay"`
	Ledger  LedgerConfig  `toml:"ledger"`
	Storage StorageConfig `toml:"storage"`
	Poll    PollConfig    `toml:"poll"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
}

// MarketConfig 描述交易所时段与代码后缀。Open/Close 为 HH:MM 本地时间，两端均包含。
type MarketConfig struct {
	Suffix   string `toml:"suffix"`
	Timezone string `toml:"timezone"`
	Open     string `toml:"open"`
	Close    string `toml:"close"`
}

type RelayConfig struct {
	CacheTTL         time.Duration `toml:"cache_ttl"`
	Origin           string        `toml:"origin"`
	Hosts            []string      `toml:"hosts"`
	RegistryPath     string        `toml:"registry_path"`
	BreakerThreshold int           `toml:"breaker_threshold"`
	BreakerCooldown  time.Duration `toml:"breaker_cooldown"`
	Concurrency      int           `toml:"concurrency"`
	Relays           []RelayEntry  `toml:"relays"`
}

type RelayEntry struct {
	Name    string        `toml:"name"`
	Prefix  string        `toml:"prefix"`
	Timeout time.Duration `toml:"timeout"`
	Mode    string        `toml:"mode"`
}

// LedgerConfig 控制首次启动与重置时的默认账户。
type LedgerConfig struct {
	AccountID       string   `toml:"account_id"`
	Email           string   `toml:"email"`
	DisplayName     string   `toml:"display_name"`
	StartingBalance string   `toml:"starting_balance"`
	Watchlist       []string `toml:"watchlist"`
}

type StorageConfig struct {
	Driver        string `toml:"driver"`
	Path          string `toml:"path"`
	Key           string `toml:"key"`
	JournalDriver string `toml:"journal_driver"`
	JournalPath   string `toml:"journal_path"`
}

type PollConfig struct {
	Watchlist time.Duration `toml:"watchlist"`
	Portfolio time.Duration `toml:"portfolio"`
	Session   string        `toml:"session"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
