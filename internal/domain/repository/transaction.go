package repository

import (
	"context"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// TransactionRepository appends and queries ledger entries. There is no update or delete.
type TransactionRepository interface {
	Append(ctx context.Context, tx model.Transaction) (*model.Transaction, error)
	// List returns one page matching filter, newest first, and the total match count.
	List(ctx context.Context, userID string, filter model.TransactionFilter) ([]model.Transaction, int, error)
}
