package handlers

import (
	"context"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// HealthFacade reports whether the service can reach its datastore.
type HealthFacade interface {
	Health(ctx context.Context) error
}

// WithdrawalFacade covers operator actions on single withdrawals.
type WithdrawalFacade interface {
	Withdrawal(ctx context.Context, withdrawalID string) (*model.Withdrawal, error)
	AuditTrail(ctx context.Context, withdrawalID string) ([]model.AuditEntry, error)
	ResumeWithdrawal(ctx context.Context, withdrawalID string) (*model.Withdrawal, error)
	RefundFailedWithdrawal(ctx context.Context, withdrawalID string) (*model.Refund, error)
}

// BalanceFacade exposes read access to user balances.
type BalanceFacade interface {
	Balances(ctx context.Context, userID, currency string) ([]model.Balance, error)
}

// OpsFacade aggregates everything the operations API needs.
type OpsFacade interface {
	HealthFacade
	WithdrawalFacade
	BalanceFacade
}
