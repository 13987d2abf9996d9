package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/polkiloo/payledger/internal/domain/model"
)

type auditRepository struct {
	storage *Storage
}

const auditColumns = `id, withdrawal_id, from_status, to_status, metadata, created_at`

func scanAudit(row pgx.Row) (*model.AuditEntry, error) {
	var e model.AuditEntry
	if err := row.Scan(&e.ID, &e.WithdrawalID, &e.FromStatus, &e.ToStatus, &e.Metadata, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *auditRepository) Append(ctx context.Context, entry model.AuditEntry) (*model.AuditEntry, error) {
	const query = `INSERT INTO withdrawal_audit_log (id, withdrawal_id, from_status, to_status, metadata)
                   VALUES ($1, $2, $3, $4, $5)
                   RETURNING ` + auditColumns
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	return scanAudit(r.storage.db(ctx).QueryRow(ctx, query,
		entry.ID, entry.WithdrawalID, entry.FromStatus, entry.ToStatus, entry.Metadata))
}

func (r *auditRepository) ListByWithdrawal(ctx context.Context, withdrawalID string) ([]model.AuditEntry, error) {
	const query = `SELECT ` + auditColumns + ` FROM withdrawal_audit_log
                   WHERE withdrawal_id=$1 ORDER BY created_at, id`
	rows, err := r.storage.db(ctx).Query(ctx, query, withdrawalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.AuditEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
