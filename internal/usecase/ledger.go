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

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// BalanceLedger moves funds between the available and held parts of user balances.
// Every movement and its ledger entry are written in one database transaction.
type BalanceLedger struct {
	tx           repository.Transactor
	balances     repository.BalanceRepository
	holds        repository.HoldRepository
	transactions repository.TransactionRepository
	refunds      repository.RefundRepository
	withdrawals  repository.WithdrawalRepository
	holdManager  *HoldManager
	cfg          *config.Config
	logger       *slog.Logger
}

// NewBalanceLedger constructs BalanceLedger.
func NewBalanceLedger(factory repository.Factory, holdManager *HoldManager, cfg *config.Config, logger *slog.Logger) *BalanceLedger {
	return &BalanceLedger{
		tx:           factory,
		balances:     factory.Balances(),
		holds:        factory.Holds(),
		transactions: factory.Transactions(),
		refunds:      factory.Refunds(),
		withdrawals:  factory.Withdrawals(),
		holdManager:  holdManager,
		cfg:          cfg,
		logger:       logger,
	}
}

// DebitAvailable removes amount from the available balance and records a DEBIT entry.
func (l *BalanceLedger) DebitAvailable(ctx context.Context, userID string, amount decimal.Decimal, currency string, ref model.Reference, description string) (*model.Balance, error) {
	if err := validateMovement(l.cfg, userID, amount, currency, ref); err != nil {
		return nil, err
	}

	log, _ := opLogger(l.logger, "ledger.debit")
	log.Debug("debit started", slog.String("user_id", userID), slog.String("amount", amount.String()), slog.String("currency", currency))

	var balance *model.Balance
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := l.balances.DebitAvailable(ctx, userID, currency, amount)
		if err != nil {
			return err
		}
		if res.Outcome == repository.DebitInsufficientFunds {
			return &domainErrors.InsufficientFundsError{UserID: userID, Currency: currency, Requested: amount}
		}
		balance = res.Balance

		_, err = l.transactions.Append(ctx, model.Transaction{
			UserID:      userID,
			Amount:      amount,
			Currency:    currency,
			Type:        model.TransactionTypeDebit,
			Ref:         ref,
			Description: description,
		})
		return err
	})
	if err != nil {
		log.Warn("debit rejected", slog.String("user_id", userID), slog.Any("error", err))
		return nil, classify(err, "Failed to debit balance")
	}

	log.Info("debit applied", slog.String("user_id", userID), slog.String("available", balance.Available.String()))
	return balance, nil
}

// CreditAvailable adds amount to the available balance, creating the row on first use.
func (l *BalanceLedger) CreditAvailable(ctx context.Context, userID string, amount decimal.Decimal, currency string, ref model.Reference, description string) (*model.Balance, error) {
	if err := validateMovement(l.cfg, userID, amount, currency, ref); err != nil {
		return nil, err
	}

	log, _ := opLogger(l.logger, "ledger.credit")

	var balance *model.Balance
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if balance, err = l.balances.Credit(ctx, userID, currency, amount); err != nil {
			return err
		}
		_, err = l.transactions.Append(ctx, model.Transaction{
			UserID:      userID,
			Amount:      amount,
			Currency:    currency,
			Type:        model.TransactionTypeCredit,
			Ref:         ref,
			Description: description,
		})
		return err
	})
	if err != nil {
		log.Error("credit failed", slog.String("user_id", userID), slog.Any("error", err))
		return nil, classify(err, "Failed to credit balance")
	}

	log.Info("credit applied", slog.String("user_id", userID), slog.String("available", balance.Available.String()))
	return balance, nil
}

// ReleaseHold returns the funds of an ACTIVE hold to the owner's available balance.
func (l *BalanceLedger) ReleaseHold(ctx context.Context, userID, holdID string) (*model.Balance, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := validateID(holdID, "hold"); err != nil {
		return nil, err
	}

	log, _ := opLogger(l.logger, "ledger.release")

	var balance *model.Balance
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		hold, err := l.holds.Get(ctx, holdID)
		if errors.Is(err, domainErrors.ErrNotFound) {
			return domainErrors.NotFound("Hold not found")
		}
		if err != nil {
			return err
		}
		if err := l.holdManager.CanRelease(hold, userID); err != nil {
			return err
		}

		if _, err := l.holds.Release(ctx, holdID, userID); err != nil {
			if errors.Is(err, domainErrors.ErrStaleState) {
				return domainErrors.BusinessLogic(domainErrors.CodeHoldNotActive, "Hold is not active")
			}
			return err
		}

		res, err := l.balances.ReleaseHeld(ctx, userID, hold.Currency, hold.Amount)
		if err != nil {
			return err
		}
		if res.Outcome == repository.DebitInsufficientFunds {
			return domainErrors.BusinessLogic(domainErrors.CodeInsufficientHeld, "Insufficient held balance")
		}
		balance = res.Balance
		return nil
	})
	if err != nil {
		log.Warn("hold not released", slog.String("hold_id", holdID), slog.Any("error", err))
		return nil, classify(err, "Failed to release hold")
	}

	log.Info("hold released", slog.String("hold_id", holdID), slog.String("available", balance.Available.String()), slog.String("held", balance.Held.String()))
	return balance, nil
}

// ReleaseHeldAmount moves amount from held back to available without a hold record,
// as when a cancelled contract returns its escrow. Hold rows are left as they are.
func (l *BalanceLedger) ReleaseHeldAmount(ctx context.Context, userID string, amount decimal.Decimal, currency string, ref model.Reference, description string) (*model.Balance, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if err := validateCurrency(l.cfg, currency); err != nil {
		return nil, err
	}
	if err := validateReference(ref); err != nil {
		return nil, err
	}

	log, _ := opLogger(l.logger, "ledger.release_amount")

	var balance *model.Balance
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := l.balances.ReleaseHeld(ctx, userID, currency, amount)
		if err != nil {
			return err
		}
		if res.Outcome == repository.DebitInsufficientFunds {
			return domainErrors.BusinessLogic(domainErrors.CodeInsufficientHeld, "Insufficient held balance")
		}
		balance = res.Balance

		_, err = l.transactions.Append(ctx, model.Transaction{
			UserID:      userID,
			Type:        model.TransactionTypeCredit,
			Amount:      amount,
			Currency:    currency,
			Ref:         ref,
			Description: description,
		})
		return err
	})
	if err != nil {
		log.Warn("held funds not released", slog.String("user_id", userID), slog.Any("error", err))
		return nil, classify(err, "Balance release failed")
	}

	log.Info("held funds released", slog.String("user_id", userID), slog.String("available", balance.Available.String()), slog.String("held", balance.Held.String()))
	return balance, nil
}

// Settle moves amount from the payer's held funds to the payee's available funds.
func (l *BalanceLedger) Settle(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal, currency string, ref model.Reference) (from, to *model.Balance, err error) {
	if !ValidateUUID(fromUserID) {
		return nil, nil, domainErrors.BadRequest(domainErrors.CodeInvalidIdentifier, "Invalid fromUser ID format")
	}
	if !ValidateUUID(toUserID) {
		return nil, nil, domainErrors.BadRequest(domainErrors.CodeInvalidIdentifier, "Invalid toUser ID format")
	}
	if fromUserID == toUserID {
		return nil, nil, domainErrors.Validation(domainErrors.CodeSelfSettlement, "Cannot settle balance to the same user")
	}
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}
	if err := validateCurrency(l.cfg, currency); err != nil {
		return nil, nil, err
	}
	if err := validateReference(ref); err != nil {
		return nil, nil, err
	}

	log, _ := opLogger(l.logger, "ledger.settle")
	description := "Settlement for " + string(ref.Type) + " " + ref.ID

	err = l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := l.balances.ConsumeHeld(ctx, fromUserID, currency, amount)
		if err != nil {
			return err
		}
		if res.Outcome == repository.DebitInsufficientFunds {
			return domainErrors.BusinessLogic(domainErrors.CodeInsufficientFunds, "Insufficient held balance")
		}
		from = res.Balance

		if to, err = l.balances.Credit(ctx, toUserID, currency, amount); err != nil {
			return err
		}

		entries := []model.Transaction{
			{UserID: fromUserID, Type: model.TransactionTypeDebit},
			{UserID: toUserID, Type: model.TransactionTypeCredit},
		}
		for _, e := range entries {
			e.Amount, e.Currency, e.Ref, e.Description = amount, currency, ref, description
			if _, err := l.transactions.Append(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Warn("settlement failed", slog.String("from_user_id", fromUserID), slog.String("to_user_id", toUserID), slog.Any("error", err))
		return nil, nil, classify(err, "Balance settlement failed")
	}

	log.Info("settlement applied", slog.String("from_held", from.Held.String()), slog.String("to_available", to.Available.String()))
	return from, to, nil
}

// InitiateRefund credits amount back for a withdrawal. The currency is taken from
// the referenced withdrawal, or the first supported currency when it is unknown.
func (l *BalanceLedger) InitiateRefund(ctx context.Context, userID string, amount decimal.Decimal, withdrawalRef, description string) (*model.Refund, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if withdrawalRef == "" {
		return nil, domainErrors.Validation(domainErrors.CodeInvalidReference, "Invalid reference data")
	}

	currency := l.cfg.SupportedCurrencies[0]
	if ValidateUUID(withdrawalRef) {
		w, err := l.withdrawals.Get(ctx, withdrawalRef)
		switch {
		case err == nil:
			currency = w.Currency
		case !errors.Is(err, domainErrors.ErrNotFound):
			return nil, domainErrors.Internal("Failed to load withdrawal", err)
		}
	}
	return l.InitiateRefundIn(ctx, userID, amount, currency, withdrawalRef, description)
}

// InitiateRefundIn is InitiateRefund with an explicit currency.
func (l *BalanceLedger) InitiateRefundIn(ctx context.Context, userID string, amount decimal.Decimal, currency, withdrawalRef, description string) (*model.Refund, error) {
	ref := model.Reference{ID: withdrawalRef, Type: model.RefTypeWithdrawal}
	if err := validateMovement(l.cfg, userID, amount, currency, ref); err != nil {
		return nil, err
	}

	log, _ := opLogger(l.logger, "ledger.refund")

	var refund *model.Refund
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := l.balances.AddAvailable(ctx, userID, currency, amount); err != nil {
			if errors.Is(err, domainErrors.ErrNotFound) {
				return domainErrors.NotFound("Balance not found")
			}
			return err
		}

		var err error
		refund, err = l.refunds.Create(ctx, model.Refund{
			UserID:        userID,
			Amount:        amount,
			Currency:      currency,
			WithdrawalRef: withdrawalRef,
			Status:        model.RefundStatusCompleted,
			Description:   description,
		})
		if errors.Is(err, domainErrors.ErrAlreadyExists) {
			return domainErrors.BusinessLogic(domainErrors.CodeRefundExists, "Refund already issued for withdrawal")
		}
		if err != nil {
			return err
		}

		_, err = l.transactions.Append(ctx, model.Transaction{
			UserID:      userID,
			Amount:      amount,
			Currency:    currency,
			Type:        model.TransactionTypeRefund,
			Ref:         ref,
			Description: description,
		})
		return err
	})
	if err != nil {
		log.Warn("refund failed", slog.String("user_id", userID), slog.String("withdrawal_ref", withdrawalRef), slog.Any("error", err))
		return nil, classify(err, "Failed to process refund")
	}

	log.Info("refund completed", slog.String("refund_id", refund.ID), slog.String("withdrawal_ref", withdrawalRef))
	return refund, nil
}

// Balances lists the user's balances, optionally narrowed to one currency.
func (l *BalanceLedger) Balances(ctx context.Context, userID, currency string) ([]model.Balance, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if currency != "" {
		if err := validateCurrency(l.cfg, currency); err != nil {
			return nil, err
		}
		b, err := l.balances.Get(ctx, userID, currency)
		if errors.Is(err, domainErrors.ErrNotFound) {
			return []model.Balance{}, nil
		}
		if err != nil {
			return nil, domainErrors.Internal("Failed to load balance", err)
		}
		return []model.Balance{*b}, nil
	}

	list, err := l.balances.ListByUser(ctx, userID)
	if err != nil {
		return nil, domainErrors.Internal("Failed to load balances", err)
	}
	return list, nil
}

// TransactionHistory returns one page of the user's ledger entries, newest first.
func (l *BalanceLedger) TransactionHistory(ctx context.Context, userID string, filter model.TransactionFilter) (*model.TransactionPage, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	filter, err := l.normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	entries, total, err := l.transactions.List(ctx, userID, filter)
	if err != nil {
		return nil, domainErrors.Internal("Failed to load transactions", err)
	}
	return &model.TransactionPage{
		Transactions: entries,
		Pagination:   model.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (l *BalanceLedger) normalizeFilter(f model.TransactionFilter) (model.TransactionFilter, error) {
	invalid := func(msg string) (model.TransactionFilter, error) {
		return f, domainErrors.Validation(domainErrors.CodeInvalidHistoryFilter, msg)
	}

	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = defaultHistoryLimit
	}
	if f.Page < 1 {
		return invalid("Page must be at least 1")
	}
	if f.Limit < 1 || f.Limit > maxHistoryLimit {
		return invalid("Limit must be between 1 and 100")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return invalid("Start date must be before end date")
	}
	if f.Currency != "" {
		if err := validateCurrency(l.cfg, f.Currency); err != nil {
			return f, err
		}
	}
	switch f.Type {
	case "", model.TransactionTypeDebit, model.TransactionTypeCredit, model.TransactionTypeRefund:
	default:
		return invalid("Unknown transaction type " + string(f.Type))
	}
	return f, nil
}
