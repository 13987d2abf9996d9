package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
	"github.com/polkiloo/payledger/internal/domain/repository"
)

type withdrawalRepository struct {
	storage *Storage
}

const withdrawalColumns = `id, user_id, amount, currency, status,
    COALESCE(external_payout_id, ''), COALESCE(failure_reason, ''), created_at, updated_at`

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.Status, &w.ExternalPayoutID, &w.FailureReason, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *withdrawalRepository) Create(ctx context.Context, w model.Withdrawal) (*model.Withdrawal, error) {
	const query = `INSERT INTO withdrawals (id, user_id, amount, currency, status)
                   VALUES ($1, $2, $3, $4, $5)
                   RETURNING ` + withdrawalColumns
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = model.WithdrawalStatusPending
	}
	created, err := scanWithdrawal(r.storage.db(ctx).QueryRow(ctx, query, w.ID, w.UserID, w.Amount, w.Currency, w.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

func (r *withdrawalRepository) Get(ctx context.Context, id string) (*model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id=$1`
	w, err := scanWithdrawal(r.storage.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return w, nil
}

func (r *withdrawalRepository) Transition(ctx context.Context, id string, from, to model.WithdrawalStatus, patch repository.WithdrawalPatch) (*model.Withdrawal, error) {
	const query = `UPDATE withdrawals
                   SET status=$3,
                       external_payout_id=COALESCE($4, external_payout_id),
                       failure_reason=COALESCE($5, failure_reason),
                       updated_at=NOW()
                   WHERE id=$1 AND status=$2
                   RETURNING ` + withdrawalColumns
	w, err := scanWithdrawal(r.storage.db(ctx).QueryRow(ctx, query, id, from, to,
		nullIfEmpty(patch.ExternalPayoutID), nullIfEmpty(patch.FailureReason)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrStaleState
		}
		return nil, err
	}
	return w, nil
}

func (r *withdrawalRepository) ListPending(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + `
                   FROM withdrawals
                   WHERE status=$1
                   ORDER BY created_at
                   LIMIT $2`
	rows, err := r.storage.db(ctx).Query(ctx, query, model.WithdrawalStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *withdrawalRepository) ClaimStaleProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]model.Withdrawal, error) {
	const selectQuery = `SELECT ` + withdrawalColumns + `
                         FROM withdrawals
                         WHERE status=$1 AND updated_at < NOW() - make_interval(secs => $2)
                         ORDER BY updated_at
                         LIMIT $3
                         FOR UPDATE SKIP LOCKED`
	const leaseQuery = `UPDATE withdrawals SET updated_at=NOW() WHERE id=$1`

	var claimed []model.Withdrawal
	err := r.storage.WithinTransaction(ctx, func(ctx context.Context) error {
		tx := r.storage.db(ctx)
		rows, err := tx.Query(ctx, selectQuery, model.WithdrawalStatusProcessing, olderThan.Seconds(), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			w, err := scanWithdrawal(rows)
			if err != nil {
				return err
			}
			claimed = append(claimed, *w)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		for _, w := range claimed {
			if _, err := tx.Exec(ctx, leaseQuery, w.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
