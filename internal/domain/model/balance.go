package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance holds the spendable and reserved funds of a user in one currency.
type Balance struct {
	UserID    string
	Currency  string
	Available decimal.Decimal
	Held      decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total is available plus held.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Held)
}

// Reference identifies the business object a ledger movement belongs to.
type Reference struct {
	ID   string
	Type RefType
}

// Valid reports whether both parts of the reference are set.
func (r Reference) Valid() bool {
	return r.ID != "" && r.Type != ""
}

// RefType classifies references.
type RefType string

const (
	RefTypeWithdrawal RefType = "withdrawal"
	RefTypeContract   RefType = "contract"
	RefTypeEscrow     RefType = "escrow"
	RefTypeRefund     RefType = "refund"
	RefTypeDeposit    RefType = "deposit"
	RefTypeAdjustment RefType = "adjustment"
)
