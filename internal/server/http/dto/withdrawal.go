package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// WithdrawalResponse describes a withdrawal as seen by operators.
type WithdrawalResponse struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	ExternalPayoutID string          `json:"external_payout_id,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func NewWithdrawalResponse(w *model.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:               w.ID,
		UserID:           w.UserID,
		Amount:           w.Amount,
		Currency:         w.Currency,
		Status:           string(w.Status),
		ExternalPayoutID: w.ExternalPayoutID,
		FailureReason:    w.FailureReason,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

// AuditEntryResponse is one row of a withdrawal audit trail.
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	FromStatus string         `json:"from_status"`
	ToStatus   string         `json:"to_status"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

func NewAuditTrailResponse(entries []model.AuditEntry) []AuditEntryResponse {
	resp := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		meta := e.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		resp = append(resp, AuditEntryResponse{
			ID:         e.ID,
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Metadata:   meta,
			CreatedAt:  e.CreatedAt,
		})
	}
	return resp
}

// RefundResponse describes a refund credited for a failed withdrawal.
type RefundResponse struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	WithdrawalRef string          `json:"withdrawal_ref"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

func NewRefundResponse(r *model.Refund) RefundResponse {
	return RefundResponse{
		ID:            r.ID,
		UserID:        r.UserID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		WithdrawalRef: r.WithdrawalRef,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
	}
}
