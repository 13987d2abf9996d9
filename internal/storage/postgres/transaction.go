package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/polkiloo/payledger/internal/domain/model"
)

type transactionRepository struct {
	storage *Storage
}

const transactionColumns = `id, user_id, amount, currency, type, ref_id, ref_type, description, created_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Amount, &t.Currency, &t.Type, &t.Ref.ID, &t.Ref.Type, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepository) Append(ctx context.Context, tx model.Transaction) (*model.Transaction, error) {
	const query = `INSERT INTO transactions (id, user_id, amount, currency, type, ref_id, ref_type, description)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
                   RETURNING ` + transactionColumns
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	return scanTransaction(r.storage.db(ctx).QueryRow(ctx, query,
		tx.ID, tx.UserID, tx.Amount, tx.Currency, tx.Type, tx.Ref.ID, tx.Ref.Type, tx.Description))
}

// historyWhere renders the WHERE clause shared by the count and page queries.
func historyWhere(userID string, f model.TransactionFilter) (string, []any) {
	conds := []string{"user_id=$1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Currency != "" {
		add("currency=$%d", f.Currency)
	}
	if f.Type != "" {
		add("type=$%d", f.Type)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	return strings.Join(conds, " AND "), args
}

func (r *transactionRepository) List(ctx context.Context, userID string, filter model.TransactionFilter) ([]model.Transaction, int, error) {
	where, args := historyWhere(userID, filter)
	db := r.storage.db(ctx)

	var total int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(append([]any{}, args...), filter.Limit, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)
	rows, err := db.Query(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := make([]model.Transaction, 0, filter.Limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}
