package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/domain/model"
	"github.com/polkiloo/payledger/internal/domain/repository"
)

type balanceRepository struct {
	storage *Storage
}

const balanceColumns = `user_id, currency, available, held, created_at, updated_at`

func scanBalance(row pgx.Row) (*model.Balance, error) {
	var b model.Balance
	if err := row.Scan(&b.UserID, &b.Currency, &b.Available, &b.Held, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *balanceRepository) Get(ctx context.Context, userID, currency string) (*model.Balance, error) {
	const query = `SELECT ` + balanceColumns + ` FROM balances WHERE user_id=$1 AND currency=$2`
	b, err := scanBalance(r.storage.db(ctx).QueryRow(ctx, query, userID, currency))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return b, nil
}

func (r *balanceRepository) ListByUser(ctx context.Context, userID string) ([]model.Balance, error) {
	const query = `SELECT ` + balanceColumns + ` FROM balances WHERE user_id=$1 ORDER BY currency`
	rows, err := r.storage.db(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *balanceRepository) Credit(ctx context.Context, userID, currency string, amount decimal.Decimal) (*model.Balance, error) {
	const query = `INSERT INTO balances (user_id, currency, available, held)
                   VALUES ($1, $2, $3, 0)
                   ON CONFLICT (user_id, currency) DO UPDATE
                   SET available = balances.available + EXCLUDED.available, updated_at = NOW()
                   RETURNING ` + balanceColumns
	return scanBalance(r.storage.db(ctx).QueryRow(ctx, query, userID, currency, amount))
}

func (r *balanceRepository) AddAvailable(ctx context.Context, userID, currency string, amount decimal.Decimal) (*model.Balance, error) {
	const query = `UPDATE balances SET available = available + $3, updated_at = NOW()
                   WHERE user_id=$1 AND currency=$2
                   RETURNING ` + balanceColumns
	b, err := scanBalance(r.storage.db(ctx).QueryRow(ctx, query, userID, currency, amount))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return b, nil
}

func (r *balanceRepository) DebitAvailable(ctx context.Context, userID, currency string, amount decimal.Decimal) (repository.DebitResult, error) {
	const query = `UPDATE balances SET available = available - $3, updated_at = NOW()
                   WHERE user_id=$1 AND currency=$2 AND available >= $3
                   RETURNING ` + balanceColumns
	return r.conditional(ctx, query, userID, currency, amount)
}

func (r *balanceRepository) MoveToHeld(ctx context.Context, userID, currency string, amount decimal.Decimal) (repository.DebitResult, error) {
	const query = `UPDATE balances SET available = available - $3, held = held + $3, updated_at = NOW()
                   WHERE user_id=$1 AND currency=$2 AND available >= $3
                   RETURNING ` + balanceColumns
	return r.conditional(ctx, query, userID, currency, amount)
}

func (r *balanceRepository) ReleaseHeld(ctx context.Context, userID, currency string, amount decimal.Decimal) (repository.DebitResult, error) {
	const query = `UPDATE balances SET held = held - $3, available = available + $3, updated_at = NOW()
                   WHERE user_id=$1 AND currency=$2 AND held >= $3
                   RETURNING ` + balanceColumns
	return r.conditional(ctx, query, userID, currency, amount)
}

func (r *balanceRepository) ConsumeHeld(ctx context.Context, userID, currency string, amount decimal.Decimal) (repository.DebitResult, error) {
	const query = `UPDATE balances SET held = held - $3, updated_at = NOW()
                   WHERE user_id=$1 AND currency=$2 AND held >= $3
                   RETURNING ` + balanceColumns
	return r.conditional(ctx, query, userID, currency, amount)
}

// conditional runs a guarded decrement. No returned row means the guard failed
// or the balance row does not exist; both read as insufficient funds.
func (r *balanceRepository) conditional(ctx context.Context, query, userID, currency string, amount decimal.Decimal) (repository.DebitResult, error) {
	b, err := scanBalance(r.storage.db(ctx).QueryRow(ctx, query, userID, currency, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Insufficient(), nil
		}
		return repository.DebitResult{}, err
	}
	return repository.Applied(b), nil
}
