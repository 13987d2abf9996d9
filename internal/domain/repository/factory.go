package repository

import "context"

// Transactor runs fn inside one database transaction carried by the context.
// Repository calls made with that context join it. Nested calls join the outer transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Factory describes access to different domain repositories.
type Factory interface {
	Transactor
	Users() UserDirectory
	Balances() BalanceRepository
	Holds() HoldRepository
	Withdrawals() WithdrawalRepository
	Transactions() TransactionRepository
	Refunds() RefundRepository
	Audit() AuditRepository
}
