package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
	"github.com/polkiloo/payledger/internal/server/http/dto"
	testhelpers "github.com/polkiloo/payledger/internal/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(t *testing.T, method, pattern, path string, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, pattern, handler)
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domainErrors.Validation(domainErrors.CodeInvalidAmount, "Amount must be positive"), http.StatusUnprocessableEntity},
		{"bad request", domainErrors.BadRequest(domainErrors.CodeInvalidIdentifier, "Invalid ID"), http.StatusBadRequest},
		{"not found", domainErrors.NotFound("Withdrawal not found"), http.StatusNotFound},
		{"insufficient", &domainErrors.InsufficientFundsError{UserID: "u", Currency: "USD", Requested: decimal.NewFromInt(1)}, http.StatusPaymentRequired},
		{"business", domainErrors.BusinessLogic(domainErrors.CodeInvalidTransition, "no"), http.StatusConflict},
		{"internal", domainErrors.Internal("boom", errors.New("db")), http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusFor(tc.err); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	resp := performRequest(t, http.MethodGet, "/healthz", "/healthz", NewOpsHandler(testhelpers.OpsFacadeStub{}).Health)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	down := testhelpers.OpsFacadeStub{HealthFn: func(context.Context) error { return errors.New("pool closed") }}
	resp = performRequest(t, http.MethodGet, "/healthz", "/healthz", NewOpsHandler(down).Health)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestWithdrawalHandler(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	facade := testhelpers.OpsFacadeStub{WithdrawalFn: func(_ context.Context, id string) (*model.Withdrawal, error) {
		if id != "w1" {
			return nil, domainErrors.NotFound("Withdrawal not found")
		}
		return &model.Withdrawal{
			ID:               id,
			UserID:           "u1",
			Amount:           decimal.NewFromInt(50),
			Currency:         "USD",
			Status:           model.WithdrawalStatusCommitted,
			ExternalPayoutID: "po_1",
			CreatedAt:        created,
			UpdatedAt:        created,
		}, nil
	}}
	handler := NewOpsHandler(facade).Withdrawal

	resp := performRequest(t, http.MethodGet, "/withdrawals/:id", "/withdrawals/w1", handler)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body dto.WithdrawalResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "w1" || body.Status != "COMMITTED" || body.ExternalPayoutID != "po_1" || !body.Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected body %+v", body)
	}

	resp = performRequest(t, http.MethodGet, "/withdrawals/:id", "/withdrawals/missing", handler)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if e := decodeError(t, resp); e.Error != "Withdrawal not found" {
		t.Fatalf("unexpected error body %+v", e)
	}
}

func TestAuditTrailHandler(t *testing.T) {
	trail := []model.AuditEntry{
		{ID: "a1", WithdrawalID: "w1", FromStatus: model.WithdrawalStatusPending, ToStatus: model.WithdrawalStatusProcessing, Metadata: map[string]any{model.AuditKeyCorrelationID: "c1"}},
		{ID: "a2", WithdrawalID: "w1", FromStatus: model.WithdrawalStatusProcessing, ToStatus: model.WithdrawalStatusCommitted},
	}
	facade := testhelpers.OpsFacadeStub{AuditTrailFn: func(_ context.Context, id string) ([]model.AuditEntry, error) {
		switch id {
		case "w1":
			return trail, nil
		case "bad":
			return nil, domainErrors.BadRequest(domainErrors.CodeInvalidIdentifier, "Invalid withdrawal ID format")
		}
		return nil, nil
	}}
	handler := NewOpsHandler(facade).AuditTrail

	resp := performRequest(t, http.MethodGet, "/withdrawals/:id/audit", "/withdrawals/w1/audit", handler)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body []dto.AuditEntryResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 2 || body[0].Metadata[model.AuditKeyCorrelationID] != "c1" || body[1].Metadata == nil {
		t.Fatalf("unexpected body %+v", body)
	}

	resp = performRequest(t, http.MethodGet, "/withdrawals/:id/audit", "/withdrawals/w2/audit", handler)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for empty trail, got %d", resp.Code)
	}

	resp = performRequest(t, http.MethodGet, "/withdrawals/:id/audit", "/withdrawals/bad/audit", handler)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if e := decodeError(t, resp); e.Code != domainErrors.CodeInvalidIdentifier {
		t.Fatalf("unexpected error body %+v", e)
	}
}

func TestResumeHandler(t *testing.T) {
	facade := testhelpers.OpsFacadeStub{ResumeFn: func(_ context.Context, id string) (*model.Withdrawal, error) {
		if id == "w1" {
			return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusCommitted, Amount: decimal.NewFromInt(5)}, nil
		}
		return nil, domainErrors.BusinessLogic(domainErrors.CodeInvalidTransition, "Cannot transition from COMMITTED to COMMITTED")
	}}
	handler := NewOpsHandler(facade).Resume

	resp := performRequest(t, http.MethodPost, "/withdrawals/:id/resume", "/withdrawals/w1/resume", handler)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	resp = performRequest(t, http.MethodPost, "/withdrawals/:id/resume", "/withdrawals/w2/resume", handler)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if e := decodeError(t, resp); e.Code != domainErrors.CodeInvalidTransition {
		t.Fatalf("unexpected error body %+v", e)
	}
}

func TestRefundHandler(t *testing.T) {
	facade := testhelpers.OpsFacadeStub{RefundFn: func(_ context.Context, id string) (*model.Refund, error) {
		if id == "w1" {
			return &model.Refund{ID: "r1", WithdrawalRef: id, Amount: decimal.NewFromInt(50), Currency: "USD", Status: model.RefundStatusCompleted}, nil
		}
		return nil, domainErrors.Internal("Failed to initiate refund", errors.New("connection reset"))
	}}
	handler := NewOpsHandler(facade).Refund

	resp := performRequest(t, http.MethodPost, "/withdrawals/:id/refund", "/withdrawals/w1/refund", handler)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body dto.RefundResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "r1" || body.WithdrawalRef != "w1" || body.Status != "COMPLETED" {
		t.Fatalf("unexpected body %+v", body)
	}

	resp = performRequest(t, http.MethodPost, "/withdrawals/:id/refund", "/withdrawals/w2/refund", handler)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if e := decodeError(t, resp); e.Error != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("internal cause must not leak, got %+v", e)
	}
}

func TestBalancesHandler(t *testing.T) {
	var gotCurrency string
	facade := testhelpers.OpsFacadeStub{BalancesFn: func(_ context.Context, userID, currency string) ([]model.Balance, error) {
		gotCurrency = currency
		if userID == "bad" {
			return nil, domainErrors.BadRequest(domainErrors.CodeInvalidIdentifier, "Invalid user ID format")
		}
		return []model.Balance{{UserID: userID, Currency: "USD", Available: decimal.NewFromInt(70), Held: decimal.NewFromInt(30)}}, nil
	}}
	handler := NewOpsHandler(facade).Balances

	resp := performRequest(t, http.MethodGet, "/users/:id/balances", "/users/u1/balances?currency=USD", handler)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotCurrency != "USD" {
		t.Fatalf("expected currency filter to be forwarded, got %q", gotCurrency)
	}
	var body []dto.BalanceResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || !body[0].Total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected body %+v", body)
	}

	resp = performRequest(t, http.MethodGet, "/users/:id/balances", "/users/bad/balances", handler)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
