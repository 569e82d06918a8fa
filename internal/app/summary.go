package app

import (
	"fmt"
	"io"
	"strings"

	"inditrade/internal/config"
	"inditrade/internal/gateway/relay"
	"inditrade/internal/logger"
)

type StartupSummary struct {
	Env       string
	HTTPAddr  string
	Market    MarketSummary
	Relays    []RelaySummary
	Storage   StorageSummary
	Account   AccountSummary
	PollEvery PollSummary
}

type MarketSummary struct {
	Suffix   string
	Timezone string
	Session  string
}

type RelaySummary struct {
	Name    string
	Mode    string
	Timeout string
}

type StorageSummary struct {
	Driver  string
	Path    string
	Journal string
}

type AccountSummary struct {
	ID              string
	StartingBalance string
	Watchlist       []string
}

type PollSummary struct {
	Watchlist string
	Portfolio string
	Session   string
}

func buildSummary(cfg *config.Config, health relay.Health) *StartupSummary {
	s := &StartupSummary{
		Env:      cfg.App.Env,
		HTTPAddr: cfg.App.HTTPAddr,
		Market: MarketSummary{
			Suffix:   cfg.Market.Suffix,
			Timezone: cfg.Market.Timezone,
			Session:  cfg.Market.Open + "-" + cfg.Market.Close,
		},
		Storage: StorageSummary{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path},
		Account: AccountSummary{
			ID:              cfg.Ledger.AccountID,
			StartingBalance: cfg.Ledger.StartingBalance,
			Watchlist:       cfg.Ledger.Watchlist,
		},
		PollEvery: PollSummary{
			Watchlist: cfg.Poll.Watchlist.String(),
			Portfolio: cfg.Poll.Portfolio.String(),
			Session:   cfg.Poll.Session,
		},
	}
	if cfg.Storage.JournalDriver == config.StorageNone {
		s.Storage.Journal = "disabled"
	} else {
		s.Storage.Journal = cfg.Storage.JournalDriver + " " + cfg.Storage.JournalPath
	}
	for _, r := range health.Relays {
		s.Relays = append(s.Relays, RelaySummary{Name: r.Name, Mode: string(r.Mode), Timeout: r.Timeout})
	}
	return s
}

// Print logs the summary line by line.
func (s *StartupSummary) Print() {
	var b strings.Builder
	s.Render(&b)
	logger.InfoBlock(b.String())
}

func (s *StartupSummary) Render(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintf(w, "  环境: %s  监听: %s\n", s.Env, s.HTTPAddr)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[交易时段 (MARKET)]")
	fmt.Fprintf(w, "  后缀: %s  时区: %s  时段: %s\n", s.Market.Suffix, s.Market.Timezone, s.Market.Session)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[行情中继 (RELAYS)]")
	if len(s.Relays) == 0 {
		fmt.Fprintln(w, "  (无配置)")
	}
	for i, r := range s.Relays {
		fmt.Fprintf(w, "  %d. %s mode=%s timeout=%s\n", i+1, r.Name, r.Mode, r.Timeout)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[账户与存储 (ACCOUNT & STORAGE)]")
	fmt.Fprintf(w, "  账户: %s  初始资金: ₹%s\n", s.Account.ID, s.Account.StartingBalance)
	fmt.Fprintf(w, "  自选: %s\n", formatList(s.Account.Watchlist))
	fmt.Fprintf(w, "  快照: %s %s\n", s.Storage.Driver, s.Storage.Path)
	fmt.Fprintf(w, "  日志: %s\n", s.Storage.Journal)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[轮询 (POLLING)]")
	fmt.Fprintf(w, "  自选: %s  持仓: %s  时段检查: %s\n", s.PollEvery.Watchlist, s.PollEvery.Portfolio, s.PollEvery.Session)
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
