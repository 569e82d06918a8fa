package relay

import (
	"errors"
	"fmt"

	"inditrade/internal/market"
)

var (
	errEmptyBody     = errors.New("empty response body")
	errMalformedBody = errors.New("malformed JSON response")
	errNoRelays      = errors.New("no relays configured")
)

// FetchError is returned once every relay has been tried without success.
// It matches market.ErrNetworkTimeout when the last failure was a timeout
// and market.ErrQuoteUnavailable otherwise.
type FetchError struct {
	Path     string
	Timeout  bool
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	if e.Timeout {
		return market.ErrNetworkTimeout.Error()
	}
	if e.Last != nil {
		return e.Last.Error()
	}
	return market.ErrQuoteUnavailable.Error()
}

func (e *FetchError) Unwrap() []error {
	kind := market.ErrQuoteUnavailable
	if e.Timeout {
		kind = market.ErrNetworkTimeout
	}
	if e.Last == nil {
		return []error{kind}
	}
	return []error{kind, e.Last}
}

type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("relay responded with status %d", e.Code)
}

// upstreamError is an error object embedded in an otherwise valid document.
type upstreamError struct {
	Code        string
	Description string
}

func (e *upstreamError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("upstream error: %s", e.Code)
	}
	return fmt.Sprintf("upstream error: %s: %s", e.Code, e.Description)
}

// attemptError records why one relay attempt failed.
type attemptError struct {
	relay   string
	timeout bool
	err     error
}

func (e *attemptError) Error() string {
	return fmt.Sprintf("relay %s: %v", e.relay, e.err)
}

func (e *attemptError) Unwrap() error { return e.err }
