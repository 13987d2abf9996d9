package model

import "time"

// Audit metadata keys.
const (
	AuditKeyCorrelationID    = "correlation_id"
	AuditKeyExternalPayoutID = "external_payout_id"
	AuditKeyErrorMessage     = "error_message"
	AuditKeyErrorContext     = "error_context"
	AuditKeyStep             = "step"
	AuditKeyResumed          = "resumed"
)

// AuditEntry records one withdrawal status transition.
type AuditEntry struct {
	ID           string
	WithdrawalID string
	FromStatus   WithdrawalStatus
	ToStatus     WithdrawalStatus
	Metadata     map[string]any
	CreatedAt    time.Time
}
