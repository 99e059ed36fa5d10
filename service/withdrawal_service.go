package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cooplend/config"
	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// withdrawalService implements the WithdrawalService interface
type withdrawalService struct {
	config     *config.Config
	uowFactory UnitOfWorkFactory
}

// NewWithdrawalService creates a new withdrawal service
func NewWithdrawalService(uowFactory UnitOfWorkFactory) WithdrawalService {
	return &withdrawalService{
		config:     config.Get(),
		uowFactory: uowFactory,
	}
}

// RequestWithdrawal records a pending withdrawal with the fixed fee. The vault is
// only checked when a governor approves it.
func (s *withdrawalService) RequestWithdrawal(ctx context.Context, caller Capability, req WithdrawalRequest) (*models.Withdrawal, error) {
	if req.Amount <= 0 {
		return nil, NewValidationError("Withdrawal amount must be positive")
	}
	bankName := strings.TrimSpace(req.BankName)
	accountNumber := strings.TrimSpace(req.AccountNumber)
	accountHolder := strings.TrimSpace(req.AccountHolder)
	if bankName == "" || accountNumber == "" || accountHolder == "" {
		return nil, NewValidationError("Bank name, account number and account holder are required")
	}

	withdrawal := &models.Withdrawal{
		UserID:        caller.UserID,
		Amount:        req.Amount,
		Fee:           models.Money(s.config.WithdrawalFee),
		BankName:      bankName,
		AccountNumber: accountNumber,
		AccountHolder: accountHolder,
		Status:        models.RequestStatusPending,
	}

	err := runTransition(ctx, s.uowFactory, "request_withdrawal", func(uow UnitOfWork) error {
		profile, err := uow.ProfileRepository().GetByID(ctx, caller.UserID)
		if err != nil {
			return fmt.Errorf("failed to get profile: %w", err)
		}
		if profile == nil {
			return NewPreconditionError("profile not found")
		}
		if err := uow.WithdrawalRepository().Create(ctx, withdrawal); err != nil {
			return fmt.Errorf("failed to create withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// ReviewWithdrawal approves or rejects a pending withdrawal. An approval deducts the
// amount and the fee from the vault and books the fee as income.
func (s *withdrawalService) ReviewWithdrawal(ctx context.Context, caller Capability, withdrawalID uuid.UUID, approve bool, reason string) (*models.Withdrawal, error) {
	if err := requireGovernor(caller); err != nil {
		return nil, err
	}

	var withdrawal *models.Withdrawal
	err := runTransition(ctx, s.uowFactory, "review_withdrawal", func(uow UnitOfWork) error {
		repo := uow.WithdrawalRepository()

		var err error
		withdrawal, err = repo.GetForUpdate(ctx, withdrawalID)
		if err != nil {
			return fmt.Errorf("failed to get withdrawal: %w", err)
		}
		if withdrawal == nil || withdrawal.Status != models.RequestStatusPending {
			return NewPreconditionError("Withdrawal not found or not pending")
		}

		if !approve {
			var rejection *string
			if r := strings.TrimSpace(reason); r != "" {
				rejection = &r
			}
			if err := transitionWithdrawal(ctx, repo, withdrawal, models.RequestStatusRejected, caller.UserID, rejection); err != nil {
				return err
			}
			publishWithdrawalReviewed(uow, withdrawal, caller.UserID)
			return nil
		}

		snapshot, err := LoadSnapshot(ctx, uow.SettingsRepository())
		if err != nil {
			return err
		}
		if snapshot.SystemFrozen {
			return ErrSystemFrozen
		}

		profile, err := uow.ProfileRepository().GetForUpdate(ctx, withdrawal.UserID)
		if err != nil {
			return fmt.Errorf("failed to lock profile: %w", err)
		}
		if profile == nil {
			return NewPreconditionError("profile not found")
		}
		if profile.VaultBalance < withdrawal.TotalDeduction() {
			return NewInsufficientFundsError("Insufficient vault balance", withdrawal.TotalDeduction()-profile.VaultBalance)
		}

		if err := transitionWithdrawal(ctx, repo, withdrawal, models.RequestStatusApproved, caller.UserID, nil); err != nil {
			return err
		}

		base := BalanceChange{
			UserID:        withdrawal.UserID,
			Bucket:        models.BucketVault,
			ReferenceID:   refID(withdrawal.ID),
			ReferenceType: models.ReferenceTypeWithdrawal,
		}

		debit := base
		debit.Amount = -withdrawal.Amount
		debit.Type = models.TransactionTypeWithdrawal
		debit.Description = fmt.Sprintf("Withdrawal to %s", withdrawal.BankName)
		if _, err := ApplyBalanceChange(ctx, uow, debit); err != nil {
			return err
		}

		fee := base
		fee.Amount = -withdrawal.Fee
		fee.Type = models.TransactionTypeWithdrawalFee
		fee.Description = "Withdrawal fee"
		if _, err := ApplyBalanceChange(ctx, uow, fee); err != nil {
			return err
		}

		if withdrawal.Fee > 0 {
			if err := RecordIncome(ctx, uow, models.IncomeTypeWithdrawalFee, withdrawal.Fee,
				fmt.Sprintf("Withdrawal fee from %s", withdrawal.UserID.String()[:8]), refID(withdrawal.ID)); err != nil {
				return err
			}
		}

		publishWithdrawalReviewed(uow, withdrawal, caller.UserID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"withdrawal_id": withdrawalID,
		"status":        withdrawal.Status,
		"amount":        withdrawal.Amount,
		"reviewed_by":   caller.UserID,
	}).Info("Withdrawal reviewed")

	return withdrawal, nil
}

func transitionWithdrawal(ctx context.Context, repo WithdrawalRepository, withdrawal *models.Withdrawal, to models.RequestStatus, reviewer uuid.UUID, reason *string) error {
	err := repo.TransitionStatus(ctx, withdrawal.ID, models.RequestStatusPending, to, reviewer, reason)
	if errors.Is(err, ErrStatusConflict) {
		return NewPreconditionError("Withdrawal not found or not pending")
	}
	if err != nil {
		return fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	withdrawal.Status = to
	withdrawal.ReviewedBy = &reviewer
	withdrawal.RejectionReason = reason
	return nil
}

func publishWithdrawalReviewed(uow UnitOfWork, withdrawal *models.Withdrawal, reviewer uuid.UUID) {
	event := events.WithdrawalReviewedEvent{
		WithdrawalID: withdrawal.ID,
		UserID:       withdrawal.UserID,
		Status:       withdrawal.Status,
		Amount:       withdrawal.Amount,
		Fee:          withdrawal.Fee,
		ReviewedBy:   reviewer,
	}
	if withdrawal.RejectionReason != nil {
		event.Reason = *withdrawal.RejectionReason
	}
	uow.EventBus().Publish(event)
}

// ListPendingWithdrawals returns the withdrawals awaiting review, oldest first
func (s *withdrawalService) ListPendingWithdrawals(ctx context.Context, caller Capability, limit int) ([]*models.Withdrawal, error) {
	if err := requireGovernor(caller); err != nil {
		return nil, err
	}

	var withdrawals []*models.Withdrawal
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		withdrawals, err = uow.WithdrawalRepository().ListByStatus(ctx, models.RequestStatusPending, clampLimit(limit))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	return withdrawals, nil
}
