package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "DEBIT"
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeRefund TransactionType = "REFUND"
)

// Transaction is a write-once ledger entry.
type Transaction struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Type        TransactionType
	Ref         Reference
	Description string
	CreatedAt   time.Time
}

// TransactionFilter narrows a history query. Zero values mean "no filter".
type TransactionFilter struct {
	Currency string
	Type     TransactionType
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

// Offset converts the page number into a row offset.
func (f TransactionFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int
	Limit int
	Total int
	Pages int
}

// NewPagination computes the page count for total rows.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// TransactionPage is one page of history.
type TransactionPage struct {
	Transactions []Transaction
	Pagination   Pagination
}
