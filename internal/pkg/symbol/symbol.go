package symbol

import (
	"strings"
)

// DefaultSuffix is the exchange qualifier for NSE listings.
const DefaultSuffix = ".NS"

// Symbol is an exchange-qualified ticker, e.g. RELIANCE + .NS.
type Symbol struct {
	Ticker string
	Suffix string
}

func (s Symbol) String() string {
	if s.Ticker == "" {
		return ""
	}
	return s.Ticker + s.Suffix
}

// Parse splits a raw ticker on its last dot. Index symbols such as ^NSEI
// have no suffix and are returned as-is.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.LastIndex(s, "."); idx > 0 && idx < len(s)-1 {
		return Symbol{Ticker: s[:idx], Suffix: s[idx:]}
	}
	return Symbol{Ticker: s}
}

// Normalizer canonicalizes bare tickers to their exchange-qualified form.
type Normalizer struct {
	Suffix string
}

func NewNormalizer(suffix string) Normalizer {
	suffix = strings.ToUpper(strings.TrimSpace(suffix))
	if suffix != "" && !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	return Normalizer{Suffix: suffix}
}

func (n Normalizer) Normalize(s string) string {
	p := Parse(s)
	if p.Ticker == "" {
		return ""
	}
	if n.Suffix == "" || p.Suffix != "" || strings.HasPrefix(p.Ticker, "^") || strings.Contains(p.Ticker, ".") {
		return p.String()
	}
	return p.Ticker + n.Suffix
}

func (n Normalizer) NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := n.Normalize(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// HasSuffix reports whether raw is listed on the normalizer's exchange.
func (n Normalizer) HasSuffix(raw string) bool {
	if n.Suffix == "" {
		return true
	}
	return Parse(raw).Suffix == n.Suffix
}

var defaultNormalizer = NewNormalizer(DefaultSuffix)

func Normalize(s string) string {
	return defaultNormalizer.Normalize(s)
}

func NormalizeList(symbols []string) []string {
	return defaultNormalizer.NormalizeList(symbols)
}
