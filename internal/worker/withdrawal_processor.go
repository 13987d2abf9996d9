package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/payledger/internal/adapter/payout"
	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
)

// PayoutFacade exposes the subset of application functionality required by the worker.
type PayoutFacade interface {
	PendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error)
	StaleWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error)
	ProcessWithdrawal(ctx context.Context, withdrawalID string) (*model.Withdrawal, error)
	ResumeWithdrawal(ctx context.Context, withdrawalID string) (*model.Withdrawal, error)
}

type job struct {
	withdrawal model.Withdrawal
	resume     bool
}

// WithdrawalProcessor polls for PENDING and stuck PROCESSING withdrawals and
// drives them through the payout saga concurrently.
type WithdrawalProcessor struct {
	facade       PayoutFacade
	pollInterval time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger

	jobs   chan job
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewWithdrawalProcessor constructs the worker pool.
func NewWithdrawalProcessor(facade PayoutFacade, pollInterval time.Duration, batchSize, workers int, logger *slog.Logger) *WithdrawalProcessor {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &WithdrawalProcessor{
		facade:       facade,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
		jobs:         make(chan job, batchSize*workers),
	}
}

// Start launches background processing.
func (p *WithdrawalProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.dispatch(runCtx)
}

// Stop stops polling and waits until workers finish the withdrawals they already
// picked up, or until ctx expires. Queued withdrawals stay in the store for the next poll.
func (p *WithdrawalProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain withdrawal workers: %w", ctx.Err())
	}
}

func (p *WithdrawalProcessor) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchAndDispatch(ctx)
		}
	}
}

func (p *WithdrawalProcessor) fetchAndDispatch(ctx context.Context) {
	stale, err := p.facade.StaleWithdrawals(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("claim stale withdrawals failed", slog.String("error", err.Error()))
	}
	pending, err := p.facade.PendingWithdrawals(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("fetch pending withdrawals failed", slog.String("error", err.Error()))
	}

	batch := make([]job, 0, len(stale)+len(pending))
	for _, w := range stale {
		batch = append(batch, job{withdrawal: w, resume: true})
	}
	for _, w := range pending {
		batch = append(batch, job{withdrawal: w})
	}

	for _, j := range batch {
		select {
		case <-ctx.Done():
			return
		case p.jobs <- j:
		}
	}
}

func (p *WithdrawalProcessor) worker(ctx context.Context) {
	defer p.wg.Done()
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handle(ctx, j)
		}
	}
}

func (p *WithdrawalProcessor) handle(ctx context.Context, j job) {
	run := p.facade.ProcessWithdrawal
	if j.resume {
		run = p.facade.ResumeWithdrawal
	}

	// A picked up withdrawal runs to completion even when Stop is called meanwhile.
	w, err := run(context.WithoutCancel(ctx), j.withdrawal.ID)
	if err == nil {
		p.logger.Info("withdrawal settled", slog.String("withdrawal_id", w.ID), slog.String("status", string(w.Status)))
		return
	}

	var tooMany payout.TooManyRequestsError
	switch {
	case errors.As(err, &tooMany):
		p.logger.Warn("payout gateway rate limited", slog.Duration("retry_after", tooMany.RetryAfter))
		select {
		case <-ctx.Done():
		case <-time.After(tooMany.RetryAfter):
		}
	case domainErrors.CodeOf(err) == domainErrors.CodeInvalidTransition:
		// Another instance moved it first.
		p.logger.Debug("withdrawal already taken", slog.String("withdrawal_id", j.withdrawal.ID))
	default:
		p.logger.Error("withdrawal processing failed",
			slog.String("withdrawal_id", j.withdrawal.ID),
			slog.Bool("resume", j.resume),
			slog.String("error", err.Error()),
		)
	}
}
