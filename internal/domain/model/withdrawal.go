package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/domain/fsm"
)

// WithdrawalStatus describes payout processing lifecycle.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "PENDING"
	WithdrawalStatusProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalStatusCommitted  WithdrawalStatus = "COMMITTED"
	WithdrawalStatusFailed     WithdrawalStatus = "FAILED"
)

// WithdrawalLifecycle is the single source of truth for withdrawal status moves.
// COMMITTED and FAILED are terminal.
var WithdrawalLifecycle = fsm.New(map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:    {WithdrawalStatusProcessing},
	WithdrawalStatusProcessing: {WithdrawalStatusCommitted, WithdrawalStatusFailed},
})

// Withdrawal is a user's request to move available funds to an external payout.
type Withdrawal struct {
	ID               string
	UserID           string
	Amount           decimal.Decimal
	Currency         string
	Status           WithdrawalStatus
	ExternalPayoutID string
	FailureReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
