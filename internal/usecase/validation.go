package usecase

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/config"
	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
)

// ValidateUUID checks identifier format.
func ValidateUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validateUserID(id string) error {
	if !ValidateUUID(id) {
		return domainErrors.BadRequest(domainErrors.CodeInvalidIdentifier, "Invalid user ID format")
	}
	return nil
}

func validateID(id, what string) error {
	if !ValidateUUID(id) {
		return domainErrors.BadRequest(domainErrors.CodeInvalidIdentifier, "Invalid "+what+" ID format")
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domainErrors.Validation(domainErrors.CodeInvalidAmount, "Amount must be positive")
	}
	return nil
}

func validateCurrency(cfg *config.Config, currency string) error {
	if !cfg.SupportsCurrency(currency) {
		return domainErrors.Validation(domainErrors.CodeUnsupportedCurrency, "Currency "+currency+" is not supported")
	}
	return nil
}

func validateReference(ref model.Reference) error {
	if !ref.Valid() {
		return domainErrors.Validation(domainErrors.CodeInvalidReference, "Invalid reference data")
	}
	return nil
}

// validateMovement runs the shared precondition chain of balance movements.
func validateMovement(cfg *config.Config, userID string, amount decimal.Decimal, currency string, ref model.Reference) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateCurrency(cfg, currency); err != nil {
		return err
	}
	return validateReference(ref)
}

// classified reports whether err already carries a domain classification.
func classified(err error) bool {
	var de *domainErrors.Error
	var ife *domainErrors.InsufficientFundsError
	return errors.As(err, &de) || errors.As(err, &ife)
}

// classify leaves domain errors untouched and wraps anything else as internal.
func classify(err error, message string) error {
	if err == nil || classified(err) {
		return err
	}
	return domainErrors.Internal(message, err)
}

// opLogger tags every record of one call with a fresh correlation id.
func opLogger(logger *slog.Logger, op string) (*slog.Logger, string) {
	correlationID := uuid.NewString()
	return logger.With(slog.String("op", op), slog.String("correlation_id", correlationID)), correlationID
}
