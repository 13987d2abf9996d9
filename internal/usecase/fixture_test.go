package usecase

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/config"
	"github.com/polkiloo/payledger/internal/test"
)

type fixture struct {
	store        *test.MemoryStore
	gateway      *test.GatewayMock
	cfg          *config.Config
	holds        *HoldManager
	ledger       *BalanceLedger
	audit        *AuditLog
	orchestrator *WithdrawalOrchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		SupportedCurrencies:  []string{"USD", "XLM"},
		MinWithdrawal:        decimal.NewFromInt(5),
		MaxWithdrawal:        decimal.NewFromInt(500),
		PayoutTimeout:        200 * time.Millisecond,
		StaleProcessingAfter: time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := test.NewMemoryStore()
	gateway := &test.GatewayMock{}

	holds := NewHoldManager(store, cfg, logger)
	ledger := NewBalanceLedger(store, holds, cfg, logger)
	audit := NewAuditLog(store, logger)

	return &fixture{
		store:        store,
		gateway:      gateway,
		cfg:          cfg,
		holds:        holds,
		ledger:       ledger,
		audit:        audit,
		orchestrator: NewWithdrawalOrchestrator(store, audit, ledger, gateway, cfg, logger),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newUser registers a user with a USD balance.
func (f *fixture) newUser(available, held string) string {
	id := uuid.NewString()
	f.store.AddUser(id, id[:8]+"@example.com")
	f.store.SetBalance(id, "USD", dec(available), dec(held))
	return id
}

func (f *fixture) usd(userID string) (available, held decimal.Decimal) {
	b, _ := f.store.BalanceOf(userID, "USD")
	return b.Available, b.Held
}
