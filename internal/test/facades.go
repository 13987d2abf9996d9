package test

import (
	"context"
	"sync"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// WorkerFacadeStub mimics the worker's view of the application. Each poll pops
// the next batch from Pending and Stale.
type WorkerFacadeStub struct {
	sync.Mutex

	Pending   [][]model.Withdrawal
	Stale     [][]model.Withdrawal
	PendingFn func(context.Context, int) ([]model.Withdrawal, error)
	ProcessFn func(context.Context, string) (*model.Withdrawal, error)
	ResumeFn  func(context.Context, string) (*model.Withdrawal, error)

	Processed []string
	Resumed   []string
	Limits    []int
}

// PendingWithdrawals returns the next configured batch.
func (s *WorkerFacadeStub) PendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	s.Lock()
	s.Limits = append(s.Limits, limit)
	fn := s.PendingFn
	var batch []model.Withdrawal
	if len(s.Pending) > 0 {
		batch = s.Pending[0]
		s.Pending = s.Pending[1:]
	}
	s.Unlock()
	if fn != nil {
		return fn(ctx, limit)
	}
	return batch, nil
}

// StaleWithdrawals returns the next configured batch of stuck withdrawals.
func (s *WorkerFacadeStub) StaleWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	s.Lock()
	defer s.Unlock()
	if len(s.Stale) == 0 {
		return nil, nil
	}
	batch := s.Stale[0]
	s.Stale = s.Stale[1:]
	return batch, nil
}

// ProcessWithdrawal records the call and delegates to ProcessFn when set.
func (s *WorkerFacadeStub) ProcessWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	s.Lock()
	s.Processed = append(s.Processed, id)
	fn := s.ProcessFn
	s.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusCommitted}, nil
}

// ResumeWithdrawal records the call and delegates to ResumeFn when set.
func (s *WorkerFacadeStub) ResumeWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	s.Lock()
	s.Resumed = append(s.Resumed, id)
	fn := s.ResumeFn
	s.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusCommitted}, nil
}

// Snapshot returns copies of the recorded calls.
func (s *WorkerFacadeStub) Snapshot() (processed, resumed []string) {
	s.Lock()
	defer s.Unlock()
	return append([]string(nil), s.Processed...), append([]string(nil), s.Resumed...)
}

// OpsFacadeStub is a configurable facade for the operations API. Unset
// functions return zero values.
type OpsFacadeStub struct {
	HealthFn     func(context.Context) error
	WithdrawalFn func(context.Context, string) (*model.Withdrawal, error)
	AuditTrailFn func(context.Context, string) ([]model.AuditEntry, error)
	ResumeFn     func(context.Context, string) (*model.Withdrawal, error)
	RefundFn     func(context.Context, string) (*model.Refund, error)
	BalancesFn   func(context.Context, string, string) ([]model.Balance, error)
}

func (s OpsFacadeStub) Health(ctx context.Context) error {
	if s.HealthFn != nil {
		return s.HealthFn(ctx)
	}
	return nil
}

func (s OpsFacadeStub) Withdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	if s.WithdrawalFn != nil {
		return s.WithdrawalFn(ctx, id)
	}
	return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusPending}, nil
}

func (s OpsFacadeStub) AuditTrail(ctx context.Context, id string) ([]model.AuditEntry, error) {
	if s.AuditTrailFn != nil {
		return s.AuditTrailFn(ctx, id)
	}
	return nil, nil
}

func (s OpsFacadeStub) ResumeWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	if s.ResumeFn != nil {
		return s.ResumeFn(ctx, id)
	}
	return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusCommitted}, nil
}

func (s OpsFacadeStub) RefundFailedWithdrawal(ctx context.Context, id string) (*model.Refund, error) {
	if s.RefundFn != nil {
		return s.RefundFn(ctx, id)
	}
	return &model.Refund{WithdrawalRef: id, Status: model.RefundStatusCompleted}, nil
}

func (s OpsFacadeStub) Balances(ctx context.Context, userID, currency string) ([]model.Balance, error) {
	if s.BalancesFn != nil {
		return s.BalancesFn(ctx, userID, currency)
	}
	return nil, nil
}

// TokenVerifierStub accepts every token unless Err is set.
type TokenVerifierStub struct {
	Err error
}

func (s TokenVerifierStub) Verify(string) error {
	return s.Err
}
