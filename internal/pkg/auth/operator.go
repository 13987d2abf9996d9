package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("invalid operator token")

// TokenVerifier checks the bearer token presented to the operations API.
type TokenVerifier interface {
	Verify(token string) error
}

// BcryptVerifier compares tokens against a bcrypt hash, so the plain token
// never has to live in the service configuration.
type BcryptVerifier struct {
	hash []byte
}

// NewBcryptVerifier validates hash and builds a verifier around it.
func NewBcryptVerifier(hash string) (*BcryptVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid operator token hash: %w", err)
	}
	return &BcryptVerifier{hash: []byte(hash)}, nil
}

// Verify returns ErrInvalidToken on mismatch.
func (v *BcryptVerifier) Verify(token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	err := bcrypt.CompareHashAndPassword(v.hash, []byte(token))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidToken
	}
	return err
}
