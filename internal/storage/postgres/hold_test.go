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
)

var holdCols = []string{"id", "user_id", "currency", "amount", "status", "ref_id", "ref_type", "description", "created_at", "released_at"}

func holdRow(id string, status model.HoldStatus, releasedAt *time.Time) *pgxmockv3.Rows {
	return pgxmockv3.NewRows(holdCols).AddRow(id, testUserID, "USD", decimal.NewFromInt(100), status,
		"c-1", model.RefTypeContract, "escrow", time.Now(), releasedAt)
}

func TestHoldRepositoryCreate(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &holdRepository{storage: storage}
	ctx := context.Background()

	hold := model.Hold{
		ID:       "h1",
		UserID:   testUserID,
		Currency: "USD",
		Amount:   decimal.NewFromInt(100),
		Ref:      model.Reference{ID: "c-1", Type: model.RefTypeContract},
	}

	mock.ExpectQuery("INSERT INTO holds").
		WithArgs("h1", testUserID, "USD", hold.Amount, model.HoldStatusActive, "c-1", model.RefTypeContract, "").
		WillReturnRows(holdRow("h1", model.HoldStatusActive, nil))
	created, err := repo.Create(ctx, hold)
	if err != nil || created.ID != "h1" || created.Status != model.HoldStatusActive || created.ReleasedAt != nil {
		t.Fatalf("unexpected hold: %+v err=%v", created, err)
	}

	mock.ExpectQuery("INSERT INTO holds").WillReturnError(&pgconn.PgError{Code: "23505"})
	if _, err := repo.Create(ctx, hold); !errors.Is(err, domainErrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	hold.ID = ""
	mock.ExpectQuery("INSERT INTO holds").
		WithArgs(pgxmockv3.AnyArg(), testUserID, "USD", hold.Amount, model.HoldStatusActive, "c-1", model.RefTypeContract, "").
		WillReturnError(errors.New("insert"))
	if _, err := repo.Create(ctx, hold); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestHoldRepositoryGetAndRelease(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &holdRepository{storage: storage}
	ctx := context.Background()

	mock.ExpectQuery("FROM holds WHERE id=").WithArgs("h1").WillReturnRows(holdRow("h1", model.HoldStatusActive, nil))
	h, err := repo.Get(ctx, "h1")
	if err != nil || h.Ref.Type != model.RefTypeContract {
		t.Fatalf("unexpected hold: %+v err=%v", h, err)
	}

	mock.ExpectQuery("FROM holds WHERE id=").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	releasedAt := time.Now()
	mock.ExpectQuery("UPDATE holds SET status=").
		WithArgs("h1", testUserID, model.HoldStatusReleased, model.HoldStatusActive).
		WillReturnRows(holdRow("h1", model.HoldStatusReleased, &releasedAt))
	h, err = repo.Release(ctx, "h1", testUserID)
	if err != nil || h.Status != model.HoldStatusReleased || h.ReleasedAt == nil {
		t.Fatalf("unexpected released hold: %+v err=%v", h, err)
	}

	mock.ExpectQuery("UPDATE holds SET status=").
		WithArgs("h1", testUserID, model.HoldStatusReleased, model.HoldStatusActive).
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Release(ctx, "h1", testUserID); !errors.Is(err, domainErrors.ErrStaleState) {
		t.Fatalf("expected stale state, got %v", err)
	}

	mock.ExpectQuery("UPDATE holds SET status=").WillReturnError(errors.New("update"))
	if _, err := repo.Release(ctx, "h1", testUserID); err == nil || errors.Is(err, domainErrors.ErrStaleState) {
		t.Fatalf("expected raw error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestHoldRepositoryListActive(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &holdRepository{storage: storage}
	ctx := context.Background()

	mock.ExpectQuery("FROM holds WHERE user_id=").WithArgs(testUserID, model.HoldStatusActive).
		WillReturnRows(holdRow("h1", model.HoldStatusActive, nil))
	list, err := repo.ListActiveByUser(ctx, testUserID)
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected list: %+v err=%v", list, err)
	}

	mock.ExpectQuery("FROM holds WHERE user_id=").WithArgs("u2", model.HoldStatusActive).WillReturnError(errors.New("query"))
	if _, err := repo.ListActiveByUser(ctx, "u2"); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("FROM holds WHERE user_id=").WithArgs("u3", model.HoldStatusActive).WillReturnRows(
		pgxmockv3.NewRows(holdCols).
			AddRow("h1", testUserID, "USD", decimal.NewFromInt(1), model.HoldStatusActive, "c", model.RefTypeContract, "", time.Now(), nil).
			RowError(0, errors.New("row")),
	)
	if _, err := repo.ListActiveByUser(ctx, "u3"); err == nil {
		t.Fatal("expected row error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}

	rowsStorage := &Storage{pool: &rowsErrorPool{rows: &errorRows{err: errors.New("rows err")}}}
	if _, err := (&holdRepository{storage: rowsStorage}).ListActiveByUser(ctx, testUserID); err == nil || err.Error() != "rows err" {
		t.Fatalf("expected rows err, got %v", err)
	}
}
