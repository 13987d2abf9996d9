package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/config"
	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
	"github.com/polkiloo/payledger/internal/domain/repository"
)

// HoldManager places holds and guards their lifecycle.
type HoldManager struct {
	tx       repository.Transactor
	balances repository.BalanceRepository
	holds    repository.HoldRepository
	cfg      *config.Config
	logger   *slog.Logger
}

// NewHoldManager constructs HoldManager.
func NewHoldManager(factory repository.Factory, cfg *config.Config, logger *slog.Logger) *HoldManager {
	return &HoldManager{
		tx:       factory,
		balances: factory.Balances(),
		holds:    factory.Holds(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Place moves amount from available to held and records an ACTIVE hold.
func (m *HoldManager) Place(ctx context.Context, userID string, amount decimal.Decimal, currency string, ref model.Reference, description string) (*model.Hold, error) {
	if err := validateMovement(m.cfg, userID, amount, currency, ref); err != nil {
		return nil, err
	}

	log, _ := opLogger(m.logger, "hold.place")

	var placed *model.Hold
	err := m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := m.balances.MoveToHeld(ctx, userID, currency, amount)
		if err != nil {
			return err
		}
		if res.Outcome == repository.DebitInsufficientFunds {
			return &domainErrors.InsufficientFundsError{UserID: userID, Currency: currency, Requested: amount}
		}

		placed, err = m.holds.Create(ctx, model.Hold{
			UserID:      userID,
			Currency:    currency,
			Amount:      amount,
			Status:      model.HoldStatusActive,
			Ref:         ref,
			Description: description,
		})
		return err
	})
	if err != nil {
		log.Warn("hold not placed", slog.String("user_id", userID), slog.String("currency", currency), slog.Any("error", err))
		return nil, classify(err, "Failed to hold balance")
	}

	log.Info("hold placed", slog.String("hold_id", placed.ID), slog.String("user_id", userID), slog.String("amount", amount.String()), slog.String("currency", currency))
	return placed, nil
}

// Get returns a hold by id.
func (m *HoldManager) Get(ctx context.Context, holdID string) (*model.Hold, error) {
	if err := validateID(holdID, "hold"); err != nil {
		return nil, err
	}
	hold, err := m.holds.Get(ctx, holdID)
	if errors.Is(err, domainErrors.ErrNotFound) {
		return nil, domainErrors.NotFound("Hold not found")
	}
	if err != nil {
		return nil, domainErrors.Internal("Failed to load hold", err)
	}
	return hold, nil
}

// ActiveByUser lists holds that still reserve funds.
func (m *HoldManager) ActiveByUser(ctx context.Context, userID string) ([]model.Hold, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	holds, err := m.holds.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, domainErrors.Internal("Failed to list holds", err)
	}
	return holds, nil
}

// CanRelease rejects holds that belong to someone else or are already released.
func (m *HoldManager) CanRelease(hold *model.Hold, userID string) error {
	if hold.UserID != userID {
		return domainErrors.BusinessLogic(domainErrors.CodeHoldNotOwned, "Hold does not belong to user")
	}
	if !model.HoldLifecycle.CanTransition(hold.Status, model.HoldStatusReleased) {
		return domainErrors.BusinessLogic(domainErrors.CodeHoldNotActive, "Hold is not active")
	}
	return nil
}
