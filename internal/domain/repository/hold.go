package repository

import (
	"context"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// HoldRepository persists fund reservations.
type HoldRepository interface {
	Create(ctx context.Context, hold model.Hold) (*model.Hold, error)
	Get(ctx context.Context, id string) (*model.Hold, error)
	// Release flips an ACTIVE hold owned by userID to RELEASED. Returns ErrStaleState
	// when no ACTIVE hold matched.
	Release(ctx context.Context, id, userID string) (*model.Hold, error)
	ListActiveByUser(ctx context.Context, userID string) ([]model.Hold, error)
}
