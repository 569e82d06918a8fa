package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrValidation marks an order that is malformed and must not be retried.
var ErrValidation = errors.New("invalid order")

var (
	ErrInvalidPrice    = fmt.Errorf("%w: price must be a positive finite number", ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	ErrInvalidSide     = fmt.Errorf("%w: side must be BUY or SELL", ErrValidation)
	ErrInvalidSymbol   = fmt.Errorf("%w: symbol is required", ErrValidation)
	ErrDuplicateOrder  = fmt.Errorf("%w: order id already executed", ErrValidation)
)

// ErrRejected is matched by every business-rule rejection.
var ErrRejected = errors.New("order rejected")

var ErrNotLoaded = errors.New("ledger not loaded")

type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required ₹%s, available ₹%s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrRejected }

type InsufficientSharesError struct {
	Symbol    string
	Owned     int64
	Requested int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: owned %d, trying to sell %d", e.Symbol, e.Owned, e.Requested)
}

func (e *InsufficientSharesError) Is(target error) bool { return target == ErrRejected }

// NoPositionError is returned when selling a symbol that is not held.
type NoPositionError struct {
	Symbol string
}

func (e *NoPositionError) Error() string {
	return fmt.Sprintf("no position in %s", e.Symbol)
}

func (e *NoPositionError) Is(target error) bool {
	return target == ErrRejected || target == ErrNoPosition
}

var ErrNoPosition = errors.New("no position")
