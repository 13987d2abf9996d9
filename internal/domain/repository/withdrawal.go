package repository

import (
	"context"
	"time"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// WithdrawalPatch carries optional columns written together with a status change.
type WithdrawalPatch struct {
	ExternalPayoutID string
	FailureReason    string
}

// WithdrawalRepository persists withdrawals.
type WithdrawalRepository interface {
	Create(ctx context.Context, w model.Withdrawal) (*model.Withdrawal, error)
	Get(ctx context.Context, id string) (*model.Withdrawal, error)
	// Transition performs a compare-and-swap on status. Returns ErrStaleState when the
	// row is no longer in from.
	Transition(ctx context.Context, id string, from, to model.WithdrawalStatus, patch WithdrawalPatch) (*model.Withdrawal, error)
	ListPending(ctx context.Context, limit int) ([]model.Withdrawal, error)
	// ClaimStaleProcessing returns PROCESSING rows untouched for longer than olderThan
	// and extends their lease so other instances skip them.
	ClaimStaleProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]model.Withdrawal, error)
}
