package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
)

type holdRepository struct {
	storage *Storage
}

const holdColumns = `id, user_id, currency, amount, status, ref_id, ref_type, description, created_at, released_at`

func scanHold(row pgx.Row) (*model.Hold, error) {
	var h model.Hold
	err := row.Scan(&h.ID, &h.UserID, &h.Currency, &h.Amount, &h.Status, &h.Ref.ID, &h.Ref.Type, &h.Description, &h.CreatedAt, &h.ReleasedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *holdRepository) Create(ctx context.Context, hold model.Hold) (*model.Hold, error) {
	const query = `INSERT INTO holds (id, user_id, currency, amount, status, ref_id, ref_type, description)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
                   RETURNING ` + holdColumns
	if hold.ID == "" {
		hold.ID = uuid.NewString()
	}
	if hold.Status == "" {
		hold.Status = model.HoldStatusActive
	}
	h, err := scanHold(r.storage.db(ctx).QueryRow(ctx, query,
		hold.ID, hold.UserID, hold.Currency, hold.Amount, hold.Status, hold.Ref.ID, hold.Ref.Type, hold.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	return h, nil
}

func (r *holdRepository) Get(ctx context.Context, id string) (*model.Hold, error) {
	const query = `SELECT ` + holdColumns + ` FROM holds WHERE id=$1`
	h, err := scanHold(r.storage.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return h, nil
}

func (r *holdRepository) Release(ctx context.Context, id, userID string) (*model.Hold, error) {
	const query = `UPDATE holds SET status=$3, released_at=NOW()
                   WHERE id=$1 AND user_id=$2 AND status=$4
                   RETURNING ` + holdColumns
	h, err := scanHold(r.storage.db(ctx).QueryRow(ctx, query, id, userID, model.HoldStatusReleased, model.HoldStatusActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrStaleState
		}
		return nil, err
	}
	return h, nil
}

func (r *holdRepository) ListActiveByUser(ctx context.Context, userID string) ([]model.Hold, error) {
	const query = `SELECT ` + holdColumns + ` FROM holds WHERE user_id=$1 AND status=$2 ORDER BY created_at DESC`
	rows, err := r.storage.db(ctx).Query(ctx, query, userID, model.HoldStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
