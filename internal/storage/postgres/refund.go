package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
)

type refundRepository struct {
	storage *Storage
}

const refundColumns = `id, user_id, amount, currency, withdrawal_ref, status, description, created_at`

func scanRefund(row pgx.Row) (*model.Refund, error) {
	var rf model.Refund
	err := row.Scan(&rf.ID, &rf.UserID, &rf.Amount, &rf.Currency, &rf.WithdrawalRef, &rf.Status, &rf.Description, &rf.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

func (r *refundRepository) Create(ctx context.Context, refund model.Refund) (*model.Refund, error) {
	const query = `INSERT INTO refunds (id, user_id, amount, currency, withdrawal_ref, status, description)
                   VALUES ($1, $2, $3, $4, $5, $6, $7)
                   RETURNING ` + refundColumns
	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}
	if refund.Status == "" {
		refund.Status = model.RefundStatusCompleted
	}
	created, err := scanRefund(r.storage.db(ctx).QueryRow(ctx, query,
		refund.ID, refund.UserID, refund.Amount, refund.Currency, refund.WithdrawalRef, refund.Status, refund.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

func (r *refundRepository) GetByWithdrawal(ctx context.Context, withdrawalRef string) (*model.Refund, error) {
	const query = `SELECT ` + refundColumns + ` FROM refunds WHERE withdrawal_ref=$1`
	rf, err := scanRefund(r.storage.db(ctx).QueryRow(ctx, query, withdrawalRef))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return rf, nil
}
