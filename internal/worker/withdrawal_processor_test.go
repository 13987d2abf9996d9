package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/polkiloo/payledger/internal/adapter/payout"
	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
	testhelpers "github.com/polkiloo/payledger/internal/test"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewWithdrawalProcessorDefaults(t *testing.T) {
	proc := NewWithdrawalProcessor(&testhelpers.WorkerFacadeStub{}, time.Second, 0, 0, discardLogger())
	if proc.batchSize != 1 {
		t.Fatalf("expected batch size default to 1, got %d", proc.batchSize)
	}
	if proc.workers != 1 {
		t.Fatalf("expected workers default to 1, got %d", proc.workers)
	}
	if cap(proc.jobs) != 1 {
		t.Fatalf("expected job buffer of 1, got %d", cap(proc.jobs))
	}
}

func TestWithdrawalProcessorProcessesPendingAndResumesStale(t *testing.T) {
	facade := &testhelpers.WorkerFacadeStub{
		Pending: [][]model.Withdrawal{{{ID: "w1"}, {ID: "w2"}}},
		Stale:   [][]model.Withdrawal{{{ID: "w3", Status: model.WithdrawalStatusProcessing}}},
	}
	proc := NewWithdrawalProcessor(facade, 5*time.Millisecond, 4, 2, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.Start(ctx)

	waitFor(t, "withdrawals to be handled", func() bool {
		processed, resumed := facade.Snapshot()
		return len(processed) == 2 && len(resumed) == 1
	})
	if err := proc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	processed, resumed := facade.Snapshot()
	if resumed[0] != "w3" {
		t.Fatalf("expected w3 to be resumed, got %v", resumed)
	}
	seen := map[string]bool{}
	for _, id := range processed {
		seen[id] = true
	}
	if !seen["w1"] || !seen["w2"] {
		t.Fatalf("expected w1 and w2 to be processed, got %v", processed)
	}

	facade.Lock()
	defer facade.Unlock()
	if facade.Limits[0] != 4 {
		t.Fatalf("expected batch size to be passed as limit, got %d", facade.Limits[0])
	}
}

func TestWithdrawalProcessorHandlesRateLimiting(t *testing.T) {
	attempts := int32(0)
	facade := &testhelpers.WorkerFacadeStub{
		Pending: [][]model.Withdrawal{{{ID: "w1"}}, {{ID: "w2"}}},
		ProcessFn: func(ctx context.Context, id string) (*model.Withdrawal, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return nil, domainErrors.Internal("Payout gateway failure", payout.TooManyRequestsError{RetryAfter: 10 * time.Millisecond})
			}
			return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusCommitted}, nil
		},
	}

	proc := NewWithdrawalProcessor(facade, 5*time.Millisecond, 1, 1, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.Start(ctx)

	waitFor(t, "retry after rate limit", func() bool { return atomic.LoadInt32(&attempts) >= 2 })
	if err := proc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestWithdrawalProcessorSurvivesFailures(t *testing.T) {
	polls := int32(0)
	facade := &testhelpers.WorkerFacadeStub{
		PendingFn: func(ctx context.Context, limit int) ([]model.Withdrawal, error) {
			switch atomic.AddInt32(&polls, 1) {
			case 1:
				return nil, errors.New("db down")
			case 2:
				return []model.Withdrawal{{ID: "taken"}, {ID: "broken"}}, nil
			default:
				return []model.Withdrawal{{ID: "ok"}}, nil
			}
		},
		ProcessFn: func(ctx context.Context, id string) (*model.Withdrawal, error) {
			switch id {
			case "taken":
				return nil, domainErrors.BusinessLogic(domainErrors.CodeInvalidTransition, "moved")
			case "broken":
				return nil, errors.New("boom")
			}
			return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusCommitted}, nil
		},
	}

	proc := NewWithdrawalProcessor(facade, 5*time.Millisecond, 2, 1, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.Start(ctx)

	waitFor(t, "processing to continue after failures", func() bool {
		processed, _ := facade.Snapshot()
		for _, id := range processed {
			if id == "ok" {
				return true
			}
		}
		return false
	})
	if err := proc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestWithdrawalProcessorStopIsIdempotent(t *testing.T) {
	proc := NewWithdrawalProcessor(&testhelpers.WorkerFacadeStub{}, time.Millisecond, 1, 1, discardLogger())
	proc.Start(context.Background())
	if err := proc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := proc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestWithdrawalProcessorStopDrainsInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var jobCtxErr atomic.Value
	facade := &testhelpers.WorkerFacadeStub{
		Pending: [][]model.Withdrawal{{{ID: "w1"}}},
		ProcessFn: func(ctx context.Context, id string) (*model.Withdrawal, error) {
			close(started)
			<-release
			jobCtxErr.Store(fmt.Sprint(ctx.Err()))
			return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusCommitted}, nil
		},
	}

	proc := NewWithdrawalProcessor(facade, 5*time.Millisecond, 1, 1, discardLogger())
	proc.Start(context.Background())
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- proc.Stop(context.Background()) }()

	select {
	case err := <-stopped:
		t.Fatalf("stop returned before the in-flight withdrawal finished: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stop did not return after the withdrawal finished")
	}
	if got := jobCtxErr.Load(); got != "<nil>" {
		t.Fatalf("in-flight withdrawal saw cancellation: %v", got)
	}
	if processed, _ := facade.Snapshot(); len(processed) != 1 {
		t.Fatalf("expected exactly one withdrawal processed, got %v", processed)
	}
}

func TestWithdrawalProcessorStopHonoursDeadline(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	facade := &testhelpers.WorkerFacadeStub{
		Pending: [][]model.Withdrawal{{{ID: "w1"}}},
		ProcessFn: func(ctx context.Context, id string) (*model.Withdrawal, error) {
			close(started)
			<-release
			return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusCommitted}, nil
		},
	}

	proc := NewWithdrawalProcessor(facade, 5*time.Millisecond, 1, 1, discardLogger())
	proc.Start(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := proc.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	close(release)
	if err := proc.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
