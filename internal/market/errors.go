package market

import (
	"errors"
	"fmt"
)

var (
	// ErrSymbolNotFound is terminal: the upstream reports the symbol does
	// not exist and no other relay is tried.
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrNetworkTimeout   = errors.New("request timed out")
	ErrInvalidRange     = errors.New("invalid chart range")
)

type RangeError struct {
	Range string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid chart range %q (want 1d, 5d, 1mo, 3mo or 1y)", e.Range)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRange
}
