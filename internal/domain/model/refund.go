package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundStatus of a refund record. Refunds are created complete.
type RefundStatus string

const RefundStatusCompleted RefundStatus = "COMPLETED"

// Refund credits available funds back to a user for a withdrawal.
type Refund struct {
	ID            string
	UserID        string
	Amount        decimal.Decimal
	Currency      string
	WithdrawalRef string
	Status        RefundStatus
	Description   string
	CreatedAt     time.Time
}
