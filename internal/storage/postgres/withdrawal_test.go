package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
	"github.com/polkiloo/payledger/internal/domain/repository"
)

var withdrawalCols = []string{"id", "user_id", "amount", "currency", "status", "external_payout_id", "failure_reason", "created_at", "updated_at"}

func withdrawalRows(ids ...string) *pgxmockv3.Rows {
	rows := pgxmockv3.NewRows(withdrawalCols)
	now := time.Now()
	for _, id := range ids {
		rows.AddRow(id, testUserID, decimal.NewFromInt(50), "USD", model.WithdrawalStatusPending, "", "", now, now)
	}
	return rows
}

func TestWithdrawalRepositoryCreateAndGet(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}
	ctx := context.Background()

	w := model.Withdrawal{ID: "w1", UserID: testUserID, Amount: decimal.NewFromInt(50), Currency: "USD"}
	mock.ExpectQuery("INSERT INTO withdrawals").
		WithArgs("w1", testUserID, w.Amount, "USD", model.WithdrawalStatusPending).
		WillReturnRows(withdrawalRows("w1"))
	created, err := repo.Create(ctx, w)
	if err != nil || created.Status != model.WithdrawalStatusPending || created.ExternalPayoutID != "" {
		t.Fatalf("unexpected withdrawal: %+v err=%v", created, err)
	}

	mock.ExpectQuery("INSERT INTO withdrawals").WillReturnError(&pgconn.PgError{Code: "23505"})
	if _, err := repo.Create(ctx, w); !errors.Is(err, domainErrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	mock.ExpectQuery("INSERT INTO withdrawals").WillReturnError(errors.New("insert"))
	if _, err := repo.Create(ctx, model.Withdrawal{UserID: testUserID}); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("FROM withdrawals WHERE id=").WithArgs("w1").WillReturnRows(withdrawalRows("w1"))
	if got, err := repo.Get(ctx, "w1"); err != nil || got.ID != "w1" {
		t.Fatalf("unexpected withdrawal: %+v err=%v", got, err)
	}

	mock.ExpectQuery("FROM withdrawals WHERE id=").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryTransition(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}
	ctx := context.Background()

	now := time.Now()
	payoutID := "po_123"
	mock.ExpectQuery("UPDATE withdrawals").
		WithArgs("w1", model.WithdrawalStatusProcessing, model.WithdrawalStatusCommitted, &payoutID, (*string)(nil)).
		WillReturnRows(pgxmockv3.NewRows(withdrawalCols).
			AddRow("w1", testUserID, decimal.NewFromInt(50), "USD", model.WithdrawalStatusCommitted, payoutID, "", now, now))
	w, err := repo.Transition(ctx, "w1", model.WithdrawalStatusProcessing, model.WithdrawalStatusCommitted,
		repository.WithdrawalPatch{ExternalPayoutID: payoutID})
	if err != nil || w.Status != model.WithdrawalStatusCommitted || w.ExternalPayoutID != payoutID {
		t.Fatalf("unexpected withdrawal: %+v err=%v", w, err)
	}

	mock.ExpectQuery("UPDATE withdrawals").
		WithArgs("w1", model.WithdrawalStatusPending, model.WithdrawalStatusProcessing, (*string)(nil), (*string)(nil)).
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Transition(ctx, "w1", model.WithdrawalStatusPending, model.WithdrawalStatusProcessing, repository.WithdrawalPatch{}); !errors.Is(err, domainErrors.ErrStaleState) {
		t.Fatalf("expected stale state, got %v", err)
	}

	mock.ExpectQuery("UPDATE withdrawals").WillReturnError(errors.New("update"))
	if _, err := repo.Transition(ctx, "w1", model.WithdrawalStatusProcessing, model.WithdrawalStatusFailed,
		repository.WithdrawalPatch{FailureReason: "timeout"}); err == nil || errors.Is(err, domainErrors.ErrStaleState) {
		t.Fatalf("expected raw error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryListPending(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}
	ctx := context.Background()

	mock.ExpectQuery("FROM withdrawals WHERE status=").WithArgs(model.WithdrawalStatusPending, 10).WillReturnRows(withdrawalRows("w1", "w2"))
	list, err := repo.ListPending(ctx, 10)
	if err != nil || len(list) != 2 {
		t.Fatalf("unexpected list: %+v err=%v", list, err)
	}

	mock.ExpectQuery("FROM withdrawals WHERE status=").WithArgs(model.WithdrawalStatusPending, 10).WillReturnError(errors.New("query"))
	if _, err := repo.ListPending(ctx, 10); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("FROM withdrawals WHERE status=").WithArgs(model.WithdrawalStatusPending, 1).WillReturnRows(
		pgxmockv3.NewRows(withdrawalCols).AddRow("w1", testUserID, "bad", "USD", model.WithdrawalStatusPending, "", "", time.Now(), time.Now()),
	)
	if _, err := repo.ListPending(ctx, 1); err == nil {
		t.Fatal("expected scan error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}

	rowsStorage := &Storage{pool: &rowsErrorPool{rows: &errorRows{err: errors.New("rows err")}}}
	if _, err := (&withdrawalRepository{storage: rowsStorage}).ListPending(ctx, 1); err == nil || err.Error() != "rows err" {
		t.Fatalf("expected rows err, got %v", err)
	}
}

func TestWithdrawalRepositoryClaimStaleProcessing(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}
	ctx := context.Background()
	const selectStale = "FROM withdrawals WHERE status=\\$1 AND updated_at <"

	mock.ExpectBegin()
	mock.ExpectQuery(selectStale).WithArgs(model.WithdrawalStatusProcessing, 300.0, 5).WillReturnRows(withdrawalRows("w1", "w2"))
	mock.ExpectExec("UPDATE withdrawals SET updated_at=NOW\\(\\) WHERE id=").WithArgs("w1").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE withdrawals SET updated_at=NOW\\(\\) WHERE id=").WithArgs("w2").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	claimed, err := repo.ClaimStaleProcessing(ctx, 5*time.Minute, 5)
	if err != nil || len(claimed) != 2 {
		t.Fatalf("unexpected claimed: %+v err=%v", claimed, err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(selectStale).WithArgs(model.WithdrawalStatusProcessing, 60.0, 1).WillReturnRows(pgxmockv3.NewRows(withdrawalCols))
	mock.ExpectCommit()
	claimed, err = repo.ClaimStaleProcessing(ctx, time.Minute, 1)
	if err != nil || len(claimed) != 0 {
		t.Fatalf("expected nothing claimed: %+v err=%v", claimed, err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(selectStale).WillReturnError(errors.New("query"))
	mock.ExpectRollback()
	if _, err := repo.ClaimStaleProcessing(ctx, time.Minute, 1); err == nil {
		t.Fatal("expected query error")
	}

	mock.ExpectBegin()
	mock.ExpectQuery(selectStale).WillReturnRows(
		pgxmockv3.NewRows(withdrawalCols).AddRow("bad", testUserID, "x", "USD", model.WithdrawalStatusProcessing, "", "", time.Now(), time.Now()),
	)
	mock.ExpectRollback()
	if _, err := repo.ClaimStaleProcessing(ctx, time.Minute, 1); err == nil {
		t.Fatal("expected scan error")
	}

	mock.ExpectBegin()
	mock.ExpectQuery(selectStale).WillReturnRows(withdrawalRows("w1"))
	mock.ExpectExec("UPDATE withdrawals SET updated_at=NOW\\(\\) WHERE id=").WithArgs("w1").WillReturnError(errors.New("lease"))
	mock.ExpectRollback()
	if _, err := repo.ClaimStaleProcessing(ctx, time.Minute, 1); err == nil {
		t.Fatal("expected lease error")
	}

	mock.ExpectBegin().WillReturnError(errors.New("begin"))
	if _, err := repo.ClaimStaleProcessing(ctx, time.Minute, 1); err == nil {
		t.Fatal("expected begin error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryClaimRowsError(t *testing.T) {
	rows := &errorRows{err: errors.New("rows err")}
	storage := &Storage{pool: &rowsErrorTxPool{tx: &rowsErrorTx{rows: rows}}}
	repo := &withdrawalRepository{storage: storage}

	if _, err := repo.ClaimStaleProcessing(context.Background(), time.Minute, 1); err == nil || err.Error() != "rows err" {
		t.Fatalf("expected rows err, got %v", err)
	}
}
