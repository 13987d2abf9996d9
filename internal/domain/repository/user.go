package repository

import (
	"context"

	"github.com/polkiloo/payledger/internal/domain/model"
)

// UserDirectory resolves contact details owned by the user service.
type UserDirectory interface {
	Contact(ctx context.Context, userID string) (*model.UserContact, error)
}
