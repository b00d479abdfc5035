package errs

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind uint8

const (
	Unknown Kind = iota
	InvalidInput
	NotFound
	InsufficientFunds
	InsufficientPosition
	MarketAlreadyExists
	MarketResolved
	AlreadyResolved
	PartialFillRejected
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "INVALID_INPUT"
	case NotFound:
		return "NOT_FOUND"
	case InsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case InsufficientPosition:
		return "INSUFFICIENT_POSITION"
	case MarketAlreadyExists:
		return "MARKET_ALREADY_EXISTS"
	case MarketResolved:
		return "MARKET_RESOLVED"
	case AlreadyResolved:
		return "ALREADY_RESOLVED"
	case PartialFillRejected:
		return "PARTIAL_FILL_REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Error is the single concrete error type of the core.
//
// Needed and Available are set for InsufficientFunds (dollars),
// InsufficientPosition and PartialFillRejected (shares).
type Error struct {
	Kind      Kind
	Msg       string
	Needed    decimal.Decimal
	Available decimal.Decimal
}

func (e *Error) Error() string {
	switch e.Kind {
	case InsufficientFunds:
		return fmt.Sprintf("%s: need $%s, have $%s", e.Msg, e.Needed.StringFixed(2), e.Available.StringFixed(2))
	case InsufficientPosition, PartialFillRejected:
		return fmt.Sprintf("%s: need %s, have %s", e.Msg, e.Needed.String(), e.Available.String())
	default:
		return e.Msg
	}
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Funds(needed, available decimal.Decimal) *Error {
	return &Error{Kind: InsufficientFunds, Msg: "insufficient balance", Needed: needed, Available: available}
}

func Position(outcome string, needed, available int64) *Error {
	return &Error{
		Kind:      InsufficientPosition,
		Msg:       fmt.Sprintf("insufficient shares of outcome %s", outcome),
		Needed:    decimal.NewFromInt(needed),
		Available: decimal.NewFromInt(available),
	}
}

func PartialFill(requested, fillable int64) *Error {
	return &Error{
		Kind:      PartialFillRejected,
		Msg:       "order cannot be fully filled",
		Needed:    decimal.NewFromInt(requested),
		Available: decimal.NewFromInt(fillable),
	}
}

// KindOf unwraps err down to an *Error and reports its kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
