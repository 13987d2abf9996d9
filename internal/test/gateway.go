package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/polkiloo/payledger/internal/adapter/payout"
)

// GatewayMock is a testify mock of payout.Gateway.
type GatewayMock struct {
	mock.Mock
}

var _ payout.Gateway = (*GatewayMock)(nil)

func (m *GatewayMock) CreatePayout(ctx context.Context, req payout.Request) (*payout.Payout, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*payout.Payout)
	return p, args.Error(1)
}

func (m *GatewayMock) CommitPayout(ctx context.Context, payoutID, idempotencyKey string) (*payout.Payout, error) {
	args := m.Called(ctx, payoutID, idempotencyKey)
	p, _ := args.Get(0).(*payout.Payout)
	return p, args.Error(1)
}

func (m *GatewayMock) VerifyEligibility(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// ExpectHappyPayout wires create and commit for withdrawalID to succeed with payoutID.
func (m *GatewayMock) ExpectHappyPayout(withdrawalID, payoutID string) {
	key := payout.IdempotencyKey(withdrawalID)
	m.On("CreatePayout", mock.Anything, mock.MatchedBy(func(r payout.Request) bool {
		return r.WithdrawalID == withdrawalID && r.IdempotencyKey == key
	})).Return(&payout.Payout{ID: payoutID, Status: payout.StatusPending}, nil)
	m.On("CommitPayout", mock.Anything, payoutID, key).
		Return(&payout.Payout{ID: payoutID, Status: payout.StatusCommitted}, nil)
}
