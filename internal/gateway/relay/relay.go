package relay

import (
	"fmt"
	"strings"
	"time"
)

// Mode describes how a relay returns the upstream document.
type Mode string

const (
	// ModeRaw relays pass the upstream body through untouched.
	ModeRaw Mode = "raw"
	// ModeWrapper relays answer {"contents": ...} with the upstream body
	// embedded as a string or object.
	ModeWrapper Mode = "wrapper"
)

const defaultRelayTimeout = 12 * time.Second

// Relay is one third-party endpoint that forwards a URL-encoded target.
// The request URL is Prefix + url.QueryEscape(target).
type Relay struct {
	Name    string        `json:"name" mapstructure:"name"`
	Prefix  string        `json:"prefix" mapstructure:"prefix"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	Mode    Mode          `json:"mode" mapstructure:"mode"`
}

func (r Relay) normalized() Relay {
	r.Name = strings.TrimSpace(r.Name)
	r.Prefix = strings.TrimSpace(r.Prefix)
	if r.Name == "" {
		r.Name = r.Prefix
	}
	if r.Timeout <= 0 {
		r.Timeout = defaultRelayTimeout
	}
	switch Mode(strings.ToLower(string(r.Mode))) {
	case ModeWrapper:
		r.Mode = ModeWrapper
	default:
		r.Mode = ModeRaw
	}
	return r
}

func (r Relay) validate() error {
	if r.Prefix == "" {
		return fmt.Errorf("relay %q missing prefix", r.Name)
	}
	if !strings.HasPrefix(r.Prefix, "http://") && !strings.HasPrefix(r.Prefix, "https://") {
		return fmt.Errorf("relay %q prefix must be an http(s) url", r.Name)
	}
	return nil
}

// DefaultRelays mirrors the public CORS relays the web client used.
func DefaultRelays() []Relay {
	return []Relay{
		{Name: "corsproxy", Prefix: "https://corsproxy.io/?", Timeout: 12 * time.Second, Mode: ModeRaw},
		{Name: "allorigins", Prefix: "https://api.allorigins.win/raw?url=", Timeout: 12 * time.Second, Mode: ModeRaw},
		{Name: "codetabs", Prefix: "https://api.codetabs.com/v1/proxy?quest=", Timeout: 15 * time.Second, Mode: ModeRaw},
	}
}

// DefaultHosts are the interchangeable upstream API hosts.
func DefaultHosts() []string {
	return []string{"query1.finance.yahoo.com", "query2.finance.yahoo.com"}
}
