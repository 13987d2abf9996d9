package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/domain/fsm"
)

// HoldStatus describes a reservation lifecycle.
type HoldStatus string

const (
	HoldStatusActive   HoldStatus = "ACTIVE"
	HoldStatusReleased HoldStatus = "RELEASED"
)

// HoldLifecycle allows a single ACTIVE -> RELEASED step.
var HoldLifecycle = fsm.New(map[HoldStatus][]HoldStatus{
	HoldStatusActive: {HoldStatusReleased},
})

// Hold reserves part of a user's balance against a reference.
type Hold struct {
	ID          string
	UserID      string
	Currency    string
	Amount      decimal.Decimal
	Status      HoldStatus
	Ref         Reference
	Description string
	CreatedAt   time.Time
	ReleasedAt  *time.Time
}
