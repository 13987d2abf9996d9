package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Namespace seeds idempotency keys derived from withdrawal identifiers.
var Namespace = uuid.MustParse("b3d7c0f2-5c1e-4f8a-9e57-0a6f1d2c4e91")

// IdempotencyKey returns the stable key used for every gateway call of one withdrawal.
func IdempotencyKey(withdrawalID string) string {
	return uuid.NewSHA1(Namespace, []byte(withdrawalID)).String()
}

// Payout statuses reported by the provider.
const (
	StatusPending   = "PENDING"
	StatusCommitted = "COMMITTED"
	StatusCompleted = "COMPLETED"
	StatusRejected  = "REJECTED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Request describes a payout to create.
type Request struct {
	WithdrawalID   string
	Amount         decimal.Decimal
	Currency       string
	Email          string
	IdempotencyKey string
}

// Payout is the provider's view of a payout.
type Payout struct {
	ID       string
	Status   string
	Amount   decimal.Decimal
	Currency string
}

// Gateway is the external payout provider. Create then commit is a two-phase
// interaction; both calls accept the same idempotency key.
type Gateway interface {
	CreatePayout(ctx context.Context, req Request) (*Payout, error)
	CommitPayout(ctx context.Context, payoutID, idempotencyKey string) (*Payout, error)
	VerifyEligibility(ctx context.Context, email string) (bool, error)
}

// ErrEmptyPayoutID is returned when the provider accepts a payout without an id.
var ErrEmptyPayoutID = errors.New("payout gateway returned empty payout id")

// TooManyRequestsError represents rate limiting signal from the payout provider.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// RejectedError is a definitive refusal by the provider.
type RejectedError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *RejectedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payout rejected (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payout rejected with status %s", e.Status)
}
