package repository

import (
	"context"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// AuditRepository is append-only.
type AuditRepository interface {
	Append(ctx context.Context, entry model.AuditEntry) (*model.AuditEntry, error)
	ListByWithdrawal(ctx context.Context, withdrawalID string) ([]model.AuditEntry, error)
}
