package dto

import (
	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// BalanceResponse describes one currency balance of a user.
type BalanceResponse struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Total     decimal.Decimal `json:"total"`
}

func NewBalancesResponse(balances []model.Balance) []BalanceResponse {
	resp := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, BalanceResponse{
			Currency:  b.Currency,
			Available: b.Available,
			Held:      b.Held,
			Total:     b.Total(),
		})
	}
	return resp
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned by the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}
