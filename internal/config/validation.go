package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Relay.validate(); err != nil {
		return err
	}
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Poll.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(a.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json, got %q", a.LogFormat)
	}
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level unsupported: %q", a.LogLevel)
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if !strings.HasPrefix(m.Suffix, ".") {
		return fmt.Errorf("market.suffix must start with '.', got %q", m.Suffix)
	}
	if _, err := m.Location(); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	open, err := parseClock(m.Open)
	if err != nil {
		return fmt.Errorf("market.open: %w", err)
	}
	closing, err := parseClock(m.Close)
	if err != nil {
		return fmt.Errorf("market.close: %w", err)
	}
	if closing <= open {
		return fmt.Errorf("market.close (%s) must be after market.open (%s)", m.Close, m.Open)
	}
	return nil
}

func (r *RelayConfig) validate() error {
	if r.CacheTTL < 0 {
		return fmt.Errorf("relay.cache_ttl must be >= 0")
	}
	if r.BreakerThreshold < 0 {
		return fmt.Errorf("relay.breaker_threshold must be >= 0")
	}
	seen := make(map[string]bool, len(r.Relays))
	for i, entry := range r.Relays {
		if entry.Prefix == "" {
			return fmt.Errorf("relay.relays[%d] missing prefix", i)
		}
		if !strings.HasPrefix(entry.Prefix, "http://") && !strings.HasPrefix(entry.Prefix, "https://") {
			return fmt.Errorf("relay.relays[%d] prefix must be an http(s) url", i)
		}
		switch entry.Mode {
		case "raw", "wrapper":
		default:
			return fmt.Errorf("relay.relays[%d] mode must be raw or wrapper, got %q", i, entry.Mode)
		}
		name := entry.Name
		if name == "" {
			name = entry.Prefix
		}
		if seen[name] {
			return fmt.Errorf("relay.relays contains duplicate name %q", name)
		}
		seen[name] = true
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	bal, err := decimal.NewFromString(strings.TrimSpace(l.StartingBalance))
	if err != nil {
		return fmt.Errorf("ledger.starting_balance invalid: %w", err)
	}
	if bal.IsNegative() {
		return fmt.Errorf("ledger.starting_balance must be >= 0")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Driver {
	case StorageSQLite, StorageFile:
	default:
		return fmt.Errorf("storage.driver must be sqlite or file, got %q", s.Driver)
	}
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("storage.path cannot be empty")
	}
	switch s.JournalDriver {
	case StorageSQLite, StorageFile:
		if strings.TrimSpace(s.JournalPath) == "" {
			return fmt.Errorf("storage.journal_path cannot be empty")
		}
	case StorageNone:
	default:
		return fmt.Errorf("storage.journal_driver must be sqlite, file or none, got %q", s.JournalDriver)
	}
	return nil
}

func (p *PollConfig) validate() error {
	if p.Watchlist <= 0 {
		return fmt.Errorf("poll.watchlist must be > 0")
	}
	if p.Portfolio <= 0 {
		return fmt.Errorf("poll.portfolio must be > 0")
	}
	if _, err := cron.ParseStandard(p.Session); err != nil {
		return fmt.Errorf("poll.session invalid: %w", err)
	}
	return nil
}

// parseClock parses HH:MM into minutes of the day.
func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}
