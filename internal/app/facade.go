package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/domain/model"
	"github.com/polkiloo/payledger/internal/usecase"
)

// HealthChecker reports datastore availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LedgerFacade is the in-process entry point to balances and withdrawals.
type LedgerFacade struct {
	holds       *usecase.HoldManager
	ledger      *usecase.BalanceLedger
	audit       *usecase.AuditLog
	withdrawals *usecase.WithdrawalOrchestrator
	health      HealthChecker
}

func NewLedgerFacade(
	holds *usecase.HoldManager,
	ledger *usecase.BalanceLedger,
	audit *usecase.AuditLog,
	withdrawals *usecase.WithdrawalOrchestrator,
	health HealthChecker,
) *LedgerFacade {
	return &LedgerFacade{holds: holds, ledger: ledger, audit: audit, withdrawals: withdrawals, health: health}
}

func (f *LedgerFacade) Health(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}

func (f *LedgerFacade) Balances(ctx context.Context, userID, currency string) ([]model.Balance, error) {
	return f.ledger.Balances(ctx, userID, currency)
}

func (f *LedgerFacade) TransactionHistory(ctx context.Context, userID string, filter model.TransactionFilter) (*model.TransactionPage, error) {
	return f.ledger.TransactionHistory(ctx, userID, filter)
}

func (f *LedgerFacade) Credit(ctx context.Context, userID string, amount decimal.Decimal, currency string, ref model.Reference, description string) (*model.Balance, error) {
	return f.ledger.CreditAvailable(ctx, userID, amount, currency, ref, description)
}

func (f *LedgerFacade) Debit(ctx context.Context, userID string, amount decimal.Decimal, currency string, ref model.Reference, description string) (*model.Balance, error) {
	return f.ledger.DebitAvailable(ctx, userID, amount, currency, ref, description)
}

func (f *LedgerFacade) PlaceHold(ctx context.Context, userID string, amount decimal.Decimal, currency string, ref model.Reference, description string) (*model.Hold, error) {
	return f.holds.Place(ctx, userID, amount, currency, ref, description)
}

func (f *LedgerFacade) ReleaseHold(ctx context.Context, userID, holdID string) (*model.Balance, error) {
	return f.ledger.ReleaseHold(ctx, userID, holdID)
}

func (f *LedgerFacade) ActiveHolds(ctx context.Context, userID string) ([]model.Hold, error) {
	return f.holds.ActiveByUser(ctx, userID)
}

func (f *LedgerFacade) ReleaseHeld(ctx context.Context, userID string, amount decimal.Decimal, currency string, ref model.Reference, description string) (*model.Balance, error) {
	return f.ledger.ReleaseHeldAmount(ctx, userID, amount, currency, ref, description)
}

func (f *LedgerFacade) Settle(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal, currency string, ref model.Reference) (*model.Balance, *model.Balance, error) {
	return f.ledger.Settle(ctx, fromUserID, toUserID, amount, currency, ref)
}

func (f *LedgerFacade) Refund(ctx context.Context, userID string, amount decimal.Decimal, withdrawalRef, description string) (*model.Refund, error) {
	return f.ledger.InitiateRefund(ctx, userID, amount, withdrawalRef, description)
}

func (f *LedgerFacade) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, currency string) (*model.Withdrawal, error) {
	return f.withdrawals.CreateWithdrawal(ctx, userID, amount, currency)
}

func (f *LedgerFacade) Withdrawal(ctx context.Context, withdrawalID string) (*model.Withdrawal, error) {
	return f.withdrawals.Get(ctx, withdrawalID)
}

func (f *LedgerFacade) AuditTrail(ctx context.Context, withdrawalID string) ([]model.AuditEntry, error) {
	return f.audit.Trail(ctx, withdrawalID)
}

func (f *LedgerFacade) RefundFailedWithdrawal(ctx context.Context, withdrawalID string) (*model.Refund, error) {
	return f.withdrawals.RefundFailed(ctx, withdrawalID)
}

func (f *LedgerFacade) PendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	return f.withdrawals.Pending(ctx, limit)
}

func (f *LedgerFacade) StaleWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	return f.withdrawals.StaleProcessing(ctx, limit)
}

func (f *LedgerFacade) ProcessWithdrawal(ctx context.Context, withdrawalID string) (*model.Withdrawal, error) {
	return f.withdrawals.ProcessWithdrawal(ctx, withdrawalID)
}

func (f *LedgerFacade) ResumeWithdrawal(ctx context.Context, withdrawalID string) (*model.Withdrawal, error) {
	return f.withdrawals.Resume(ctx, withdrawalID)
}
