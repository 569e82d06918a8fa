package config

import (
	"strings"
	"time"

	"inditrade/internal/gateway/relay"
	"inditrade/internal/ledger"
	"inditrade/internal/market"

	"github.com/shopspring/decimal"
)

// Location resolves market.timezone; "IST" maps to the fixed +05:30 zone.
func (m MarketConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(m.Timezone)
	if tz == "" || strings.EqualFold(tz, "IST") {
		return market.IST, nil
	}
	return time.LoadLocation(tz)
}

// Calendar builds the session calendar. Call after Load has validated.
func (m MarketConfig) Calendar() market.Calendar {
	cal := market.NewCalendar()
	if loc, err := m.Location(); err == nil {
		cal.Location = loc
	}
	if open, err := parseClock(m.Open); err == nil {
		cal.OpenMinute = open
	}
	if closing, err := parseClock(m.Close); err == nil {
		cal.CloseMinute = closing
	}
	return cal
}

// RelayList returns the configured relays, or the built-in list when none
// are configured.
func (r RelayConfig) RelayList() []relay.Relay {
	if len(r.Relays) == 0 {
		return relay.DefaultRelays()
	}
	out := make([]relay.Relay, 0, len(r.Relays))
	for _, e := range r.Relays {
		out = append(out, relay.Relay{Name: e.Name, Prefix: e.Prefix, Timeout: e.Timeout, Mode: relay.Mode(e.Mode)})
	}
	return out
}

func (r RelayConfig) HostList() []string {
	if len(r.Hosts) == 0 {
		return relay.DefaultHosts()
	}
	return append([]string(nil), r.Hosts...)
}

// Defaults converts the ledger section into account defaults.
func (l LedgerConfig) Defaults() ledger.Defaults {
	d := ledger.DefaultSettings()
	d.AccountID = l.AccountID
	d.Email = l.Email
	d.DisplayName = l.DisplayName
	if bal, err := decimal.NewFromString(strings.TrimSpace(l.StartingBalance)); err == nil {
		d.StartingBalance = bal
	}
	d.Watchlist = append([]string{}, l.Watchlist...)
	return d
}
