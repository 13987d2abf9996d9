package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// DebitOutcome tells apart the two non-failure results of a conditional decrement.
type DebitOutcome int

const (
	DebitApplied DebitOutcome = iota + 1
	DebitInsufficientFunds
)

// DebitResult is returned by conditional decrements. Balance is set only when applied.
// A non-nil error next to it is the failure arm.
type DebitResult struct {
	Outcome DebitOutcome
	Balance *model.Balance
}

// Applied is a helper for DebitResult{Outcome: DebitApplied}.
func Applied(b *model.Balance) DebitResult {
	return DebitResult{Outcome: DebitApplied, Balance: b}
}

// Insufficient is a helper for DebitResult{Outcome: DebitInsufficientFunds}.
func Insufficient() DebitResult {
	return DebitResult{Outcome: DebitInsufficientFunds}
}

// BalanceRepository manages per-currency balances. Every mutating method is a
// single conditional statement, so concurrent callers never drive a field negative.
type BalanceRepository interface {
	Get(ctx context.Context, userID, currency string) (*model.Balance, error)
	ListByUser(ctx context.Context, userID string) ([]model.Balance, error)
	// Credit increases available funds, creating the row on first use.
	Credit(ctx context.Context, userID, currency string, amount decimal.Decimal) (*model.Balance, error)
	// AddAvailable increases available funds of an existing row. Returns ErrNotFound when absent.
	AddAvailable(ctx context.Context, userID, currency string, amount decimal.Decimal) (*model.Balance, error)
	DebitAvailable(ctx context.Context, userID, currency string, amount decimal.Decimal) (DebitResult, error)
	// MoveToHeld shifts funds from available to held.
	MoveToHeld(ctx context.Context, userID, currency string, amount decimal.Decimal) (DebitResult, error)
	// ReleaseHeld shifts funds from held back to available.
	ReleaseHeld(ctx context.Context, userID, currency string, amount decimal.Decimal) (DebitResult, error)
	// ConsumeHeld removes funds from held without returning them to available.
	ConsumeHeld(ctx context.Context, userID, currency string, amount decimal.Decimal) (DebitResult, error)
}
