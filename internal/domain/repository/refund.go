package repository

import (
	"context"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// RefundRepository persists refunds. At most one refund exists per withdrawal reference.
type RefundRepository interface {
	Create(ctx context.Context, refund model.Refund) (*model.Refund, error)
	GetByWithdrawal(ctx context.Context, withdrawalRef string) (*model.Refund, error)
}
