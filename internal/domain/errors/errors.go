package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind sentinels. Every *Error matches exactly one of them with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrBadRequest        = errors.New("bad request")
	ErrNotFound          = errors.New("not found")
	ErrBusinessLogic     = errors.New("business logic error")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInternal          = errors.New("internal server error")
)

// Storage level sentinels.
var (
	ErrAlreadyExists = errors.New("already exists")
	ErrStaleState    = errors.New("stale state")
)

// Business error codes.
const (
	CodeInvalidTransition    = "INVALID_STATUS_TRANSITION"
	CodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	CodeInsufficientHeld     = "INSUFFICIENT_HELD_FUNDS"
	CodeHoldNotActive        = "HOLD_NOT_ACTIVE"
	CodeHoldNotOwned         = "HOLD_NOT_OWNED"
	CodeRefundExists         = "REFUND_EXISTS"
	CodeWithdrawalNotFailed  = "WITHDRAWAL_NOT_FAILED"
	CodeAmountOutOfRange     = "AMOUNT_OUT_OF_RANGE"
	CodeSelfSettlement       = "SELF_SETTLEMENT"
	CodeUnsupportedCurrency  = "UNSUPPORTED_CURRENCY"
	CodeInvalidReference     = "INVALID_REFERENCE"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeInvalidIdentifier    = "INVALID_IDENTIFIER"
	CodeInvalidHistoryFilter = "INVALID_HISTORY_FILTER"
	CodeRecipientIneligible  = "RECIPIENT_NOT_ELIGIBLE"
)

// Error is a classified failure returned by the ledger and orchestrator.
type Error struct {
	Kind    error
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Validation(code, message string) *Error {
	return &Error{Kind: ErrValidation, Code: code, Message: message}
}

func BadRequest(code, message string) *Error {
	return &Error{Kind: ErrBadRequest, Code: code, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func BusinessLogic(code, message string) *Error {
	return &Error{Kind: ErrBusinessLogic, Code: code, Message: message}
}

// Internal wraps an unexpected collaborator failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: ErrInternal, Message: message, Cause: cause}
}

// InsufficientFundsError reports a debit or hold that exceeds the available balance.
type InsufficientFundsError struct {
	UserID    string
	Currency  string
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: user %s requested %s %s", e.UserID, e.Requested.String(), e.Currency)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// KindOf returns the kind sentinel of err or ErrInternal for unclassified errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrBadRequest, ErrNotFound, ErrInsufficientFunds, ErrBusinessLogic} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// CodeOf returns the business code carried by err, if any.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
