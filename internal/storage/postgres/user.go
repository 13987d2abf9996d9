package postgres

import (
	"context"

	"github.com/polkiloo/payledger/internal/domain/model"
)

type userDirectory struct {
	storage *Storage
}

func (r *userDirectory) Contact(ctx context.Context, userID string) (*model.UserContact, error) {
	const query = `SELECT id, email FROM users WHERE id=$1`
	var u model.UserContact
	if err := r.storage.db(ctx).QueryRow(ctx, query, userID).Scan(&u.ID, &u.Email); err != nil {
		return nil, mapNoRows(err)
	}
	return &u, nil
}
