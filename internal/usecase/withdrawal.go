package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polkiloo/payledger/internal/adapter/payout"
	"github.com/polkiloo/payledger/internal/config"
	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
	"github.com/polkiloo/payledger/internal/domain/repository"
)

const (
	gatewayFailureContext = "PAYOUT_GATEWAY_FAILURE"

	stepCreatePayout = "create_payout"
	stepCommitPayout = "commit_payout"
)

// WithdrawalOrchestrator drives withdrawals through the payout gateway.
// Every status change is a compare-and-swap written together with its audit entry.
type WithdrawalOrchestrator struct {
	tx          repository.Transactor
	withdrawals repository.WithdrawalRepository
	refunds     repository.RefundRepository
	users       repository.UserDirectory
	audit       *AuditLog
	ledger      *BalanceLedger
	gateway     payout.Gateway
	cfg         *config.Config
	logger      *slog.Logger
}

// NewWithdrawalOrchestrator constructs WithdrawalOrchestrator.
func NewWithdrawalOrchestrator(
	factory repository.Factory,
	audit *AuditLog,
	ledger *BalanceLedger,
	gateway payout.Gateway,
	cfg *config.Config,
	logger *slog.Logger,
) *WithdrawalOrchestrator {
	return &WithdrawalOrchestrator{
		tx:          factory,
		withdrawals: factory.Withdrawals(),
		refunds:     factory.Refunds(),
		users:       factory.Users(),
		audit:       audit,
		ledger:      ledger,
		gateway:     gateway,
		cfg:         cfg,
		logger:      logger,
	}
}

func invalidTransition(from, to model.WithdrawalStatus) error {
	return domainErrors.BusinessLogic(domainErrors.CodeInvalidTransition,
		fmt.Sprintf("Cannot transition withdrawal from %s to %s", from, to))
}

// CreateWithdrawal debits the user's available funds and stores a PENDING withdrawal.
func (o *WithdrawalOrchestrator) CreateWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, currency string) (*model.Withdrawal, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := validateCurrency(o.cfg, currency); err != nil {
		return nil, err
	}
	if amount.LessThan(o.cfg.MinWithdrawal) || amount.GreaterThan(o.cfg.MaxWithdrawal) {
		return nil, domainErrors.Validation(domainErrors.CodeAmountOutOfRange,
			fmt.Sprintf("Amount must be between %s and %s", o.cfg.MinWithdrawal, o.cfg.MaxWithdrawal))
	}

	log, _ := opLogger(o.logger, "withdrawal.create")

	contact, err := o.contact(ctx, userID)
	if err != nil {
		return nil, err
	}
	eligible, err := o.verifyEligibility(ctx, contact.Email)
	if err != nil {
		log.Error("eligibility check failed", slog.String("user_id", userID), slog.Any("error", err))
		return nil, domainErrors.Internal("Failed to verify payout eligibility", err)
	}
	if !eligible {
		return nil, domainErrors.BusinessLogic(domainErrors.CodeRecipientIneligible, "User is not eligible for payouts")
	}

	id := uuid.NewString()
	var created *model.Withdrawal
	err = o.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ref := model.Reference{ID: id, Type: model.RefTypeWithdrawal}
		if _, err := o.ledger.DebitAvailable(ctx, userID, amount, currency, ref, "Withdrawal "+id); err != nil {
			return err
		}
		var err error
		created, err = o.withdrawals.Create(ctx, model.Withdrawal{
			ID:       id,
			UserID:   userID,
			Amount:   amount,
			Currency: currency,
			Status:   model.WithdrawalStatusPending,
		})
		return err
	})
	if err != nil {
		log.Warn("withdrawal not created", slog.String("user_id", userID), slog.Any("error", err))
		return nil, classify(err, "Failed to create withdrawal")
	}

	log.Info("withdrawal created", slog.String("withdrawal_id", id), slog.String("amount", amount.String()), slog.String("currency", currency))
	return created, nil
}

// ProcessWithdrawal moves a PENDING withdrawal to PROCESSING and runs the payout saga.
// Gateway failures leave the withdrawal FAILED and are returned to the caller.
// Cancelling ctx after the PROCESSING transition does not interrupt the saga.
func (o *WithdrawalOrchestrator) ProcessWithdrawal(ctx context.Context, withdrawalID string) (*model.Withdrawal, error) {
	w, err := o.Get(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if !model.WithdrawalLifecycle.CanTransition(w.Status, model.WithdrawalStatusProcessing) {
		return nil, invalidTransition(w.Status, model.WithdrawalStatusProcessing)
	}
	contact, err := o.contact(ctx, w.UserID)
	if err != nil {
		return nil, err
	}

	log, correlationID := opLogger(o.logger, "withdrawal.process")
	log = log.With(slog.String("withdrawal_id", w.ID))

	err = o.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		updated, err := o.withdrawals.Transition(ctx, w.ID, model.WithdrawalStatusPending, model.WithdrawalStatusProcessing, repository.WithdrawalPatch{})
		if errors.Is(err, domainErrors.ErrStaleState) {
			return invalidTransition(w.Status, model.WithdrawalStatusProcessing)
		}
		if err != nil {
			return err
		}
		w = updated
		_, err = o.audit.Record(ctx, w.ID, model.WithdrawalStatusPending, model.WithdrawalStatusProcessing,
			map[string]any{model.AuditKeyCorrelationID: correlationID})
		return err
	})
	if err != nil {
		log.Warn("withdrawal not started", slog.Any("error", err))
		return nil, classify(err, "Failed to start withdrawal")
	}
	log.Info("withdrawal processing")

	return o.runPayout(context.WithoutCancel(ctx), log, w, contact.Email, correlationID, false)
}

// Resume re-runs the payout saga of a withdrawal left in PROCESSING. The idempotency
// key is derived from the withdrawal, so the provider returns the payout it already has.
func (o *WithdrawalOrchestrator) Resume(ctx context.Context, withdrawalID string) (*model.Withdrawal, error) {
	w, err := o.Get(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != model.WithdrawalStatusProcessing {
		return nil, invalidTransition(w.Status, model.WithdrawalStatusCommitted)
	}
	contact, err := o.contact(ctx, w.UserID)
	if err != nil {
		return nil, err
	}

	log, correlationID := opLogger(o.logger, "withdrawal.resume")
	log = log.With(slog.String("withdrawal_id", w.ID))
	log.Info("resuming withdrawal")

	return o.runPayout(context.WithoutCancel(ctx), log, w, contact.Email, correlationID, true)
}

// runPayout creates and commits the payout. Once started it is bounded only by
// PayoutTimeout per gateway call, so callers pass a context detached from cancellation.
func (o *WithdrawalOrchestrator) runPayout(ctx context.Context, log *slog.Logger, w *model.Withdrawal, email, correlationID string, resumed bool) (*model.Withdrawal, error) {
	key := payout.IdempotencyKey(w.ID)

	created, err := o.callGateway(ctx, func(ctx context.Context) (*payout.Payout, error) {
		return o.gateway.CreatePayout(ctx, payout.Request{
			WithdrawalID:   w.ID,
			Amount:         w.Amount,
			Currency:       w.Currency,
			Email:          email,
			IdempotencyKey: key,
		})
	})
	if err != nil {
		return nil, o.fail(ctx, log, w, correlationID, stepCreatePayout, resumed, err)
	}

	if _, err := o.callGateway(ctx, func(ctx context.Context) (*payout.Payout, error) {
		return o.gateway.CommitPayout(ctx, created.ID, key)
	}); err != nil {
		return nil, o.fail(ctx, log, w, correlationID, stepCommitPayout, resumed, err)
	}

	meta := map[string]any{
		model.AuditKeyCorrelationID:    correlationID,
		model.AuditKeyExternalPayoutID: created.ID,
	}
	if resumed {
		meta[model.AuditKeyResumed] = true
	}

	var committed *model.Withdrawal
	err = o.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		committed, err = o.withdrawals.Transition(ctx, w.ID, model.WithdrawalStatusProcessing, model.WithdrawalStatusCommitted,
			repository.WithdrawalPatch{ExternalPayoutID: created.ID})
		if err != nil {
			return err
		}
		_, err = o.audit.Record(ctx, w.ID, model.WithdrawalStatusProcessing, model.WithdrawalStatusCommitted, meta)
		return err
	})
	if err != nil {
		// The provider holds the payout; reconciliation resumes with the same key.
		log.Error("payout committed but not recorded", slog.String("payout_id", created.ID), slog.Any("error", err))
		if errors.Is(err, domainErrors.ErrStaleState) {
			return nil, invalidTransition(model.WithdrawalStatusProcessing, model.WithdrawalStatusCommitted)
		}
		return nil, classify(err, "Failed to record committed withdrawal")
	}

	log.Info("withdrawal committed", slog.String("payout_id", created.ID))
	return committed, nil
}

// fail records the FAILED transition and returns the gateway error. The record is
// written even when the caller's context is already cancelled.
func (o *WithdrawalOrchestrator) fail(ctx context.Context, log *slog.Logger, w *model.Withdrawal, correlationID, step string, resumed bool, cause error) error {
	log.Warn("payout failed", slog.String("step", step), slog.Any("error", cause))

	meta := map[string]any{
		model.AuditKeyCorrelationID: correlationID,
		model.AuditKeyErrorMessage:  cause.Error(),
		model.AuditKeyErrorContext:  gatewayFailureContext,
		model.AuditKeyStep:          step,
	}
	if resumed {
		meta[model.AuditKeyResumed] = true
	}

	err := o.tx.WithinTransaction(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if _, err := o.withdrawals.Transition(ctx, w.ID, model.WithdrawalStatusProcessing, model.WithdrawalStatusFailed,
			repository.WithdrawalPatch{FailureReason: cause.Error()}); err != nil {
			return err
		}
		_, err := o.audit.Record(ctx, w.ID, model.WithdrawalStatusProcessing, model.WithdrawalStatusFailed, meta)
		return err
	})

	gatewayErr := domainErrors.Internal("Payout gateway failure", cause)
	if err != nil {
		log.Error("failed to record withdrawal failure", slog.Any("error", err))
		return errors.Join(gatewayErr, err)
	}
	return gatewayErr
}

func (o *WithdrawalOrchestrator) callGateway(ctx context.Context, call func(context.Context) (*payout.Payout, error)) (*payout.Payout, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.PayoutTimeout)
	defer cancel()
	return call(ctx)
}

func (o *WithdrawalOrchestrator) verifyEligibility(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.PayoutTimeout)
	defer cancel()
	return o.gateway.VerifyEligibility(ctx, email)
}

// RefundFailed credits the amount of a FAILED withdrawal back to its owner.
// A refund that already exists is returned as is.
func (o *WithdrawalOrchestrator) RefundFailed(ctx context.Context, withdrawalID string) (*model.Refund, error) {
	w, err := o.Get(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != model.WithdrawalStatusFailed {
		return nil, domainErrors.BusinessLogic(domainErrors.CodeWithdrawalNotFailed, "Only failed withdrawals can be refunded")
	}

	existing, err := o.refunds.GetByWithdrawal(ctx, w.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domainErrors.ErrNotFound) {
		return nil, domainErrors.Internal("Failed to load refund", err)
	}

	refund, err := o.ledger.InitiateRefundIn(ctx, w.UserID, w.Amount, w.Currency, w.ID, "Refund for failed withdrawal "+w.ID)
	if domainErrors.CodeOf(err) == domainErrors.CodeRefundExists {
		if existing, getErr := o.refunds.GetByWithdrawal(ctx, w.ID); getErr == nil {
			return existing, nil
		}
	}
	return refund, err
}

// Get loads a withdrawal.
func (o *WithdrawalOrchestrator) Get(ctx context.Context, withdrawalID string) (*model.Withdrawal, error) {
	if err := validateID(withdrawalID, "withdrawal"); err != nil {
		return nil, err
	}
	w, err := o.withdrawals.Get(ctx, withdrawalID)
	if errors.Is(err, domainErrors.ErrNotFound) {
		return nil, domainErrors.NotFound("Withdrawal not found")
	}
	if err != nil {
		return nil, domainErrors.Internal("Failed to load withdrawal", err)
	}
	return w, nil
}

// Pending returns up to limit withdrawals waiting to be processed, oldest first.
func (o *WithdrawalOrchestrator) Pending(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	list, err := o.withdrawals.ListPending(ctx, limit)
	if err != nil {
		return nil, domainErrors.Internal("Failed to list pending withdrawals", err)
	}
	return list, nil
}

// StaleProcessing claims withdrawals stuck in PROCESSING for reconciliation.
func (o *WithdrawalOrchestrator) StaleProcessing(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	list, err := o.withdrawals.ClaimStaleProcessing(ctx, o.cfg.StaleProcessingAfter, limit)
	if err != nil {
		return nil, domainErrors.Internal("Failed to claim stale withdrawals", err)
	}
	return list, nil
}

func (o *WithdrawalOrchestrator) contact(ctx context.Context, userID string) (*model.UserContact, error) {
	c, err := o.users.Contact(ctx, userID)
	if errors.Is(err, domainErrors.ErrNotFound) {
		return nil, domainErrors.NotFound("User not found")
	}
	if err != nil {
		return nil, domainErrors.Internal("Failed to load user", err)
	}
	return c, nil
}
