package usecase

import (
	"context"
	"log/slog"

	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
	"github.com/polkiloo/payledger/internal/domain/repository"
)

// AuditLog appends and reads withdrawal status history. Entries are never changed.
type AuditLog struct {
	audit  repository.AuditRepository
	logger *slog.Logger
}

// NewAuditLog constructs AuditLog.
func NewAuditLog(factory repository.Factory, logger *slog.Logger) *AuditLog {
	return &AuditLog{audit: factory.Audit(), logger: logger}
}

// Record appends one transition attempt.
func (a *AuditLog) Record(ctx context.Context, withdrawalID string, from, to model.WithdrawalStatus, metadata map[string]any) (*model.AuditEntry, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	entry, err := a.audit.Append(ctx, model.AuditEntry{
		WithdrawalID: withdrawalID,
		FromStatus:   from,
		ToStatus:     to,
		Metadata:     metadata,
	})
	if err != nil {
		a.logger.Error("audit append failed",
			slog.String("withdrawal_id", withdrawalID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.Any("error", err),
		)
		return nil, domainErrors.Internal("Failed to record audit entry", err)
	}
	return entry, nil
}

// Trail returns the entries of a withdrawal in the order they were written.
func (a *AuditLog) Trail(ctx context.Context, withdrawalID string) ([]model.AuditEntry, error) {
	if err := validateID(withdrawalID, "withdrawal"); err != nil {
		return nil, err
	}
	entries, err := a.audit.ListByWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, domainErrors.Internal("Failed to load audit trail", err)
	}
	return entries, nil
}
