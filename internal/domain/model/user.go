package model

// UserContact is the part of a user profile the payout provider needs.
type UserContact struct {
	ID    string
	Email string
}
