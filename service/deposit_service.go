package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var allowedProofExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// depositService implements the DepositService interface
type depositService struct {
	uowFactory      UnitOfWorkFactory
	referralService ReferralService
}

// NewDepositService creates a new deposit service
func NewDepositService(uowFactory UnitOfWorkFactory, referralService ReferralService) DepositService {
	return &depositService{
		uowFactory:      uowFactory,
		referralService: referralService,
	}
}

// SubmitDeposit records a member's claim of a transfer. Balances change only on approval.
func (s *depositService) SubmitDeposit(ctx context.Context, caller Capability, amount models.Money, proofURL string) (*models.Deposit, error) {
	if amount <= 0 {
		return nil, NewValidationError("Deposit amount must be positive")
	}
	proof, err := validateProofURL(proofURL)
	if err != nil {
		return nil, err
	}

	deposit := &models.Deposit{
		UserID:   caller.UserID,
		Amount:   amount,
		ProofURL: proof,
		Status:   models.RequestStatusPending,
	}
	err = runTransition(ctx, s.uowFactory, "submit_deposit", func(uow UnitOfWork) error {
		profile, err := uow.ProfileRepository().GetByID(ctx, caller.UserID)
		if err != nil {
			return fmt.Errorf("failed to get profile: %w", err)
		}
		if profile == nil {
			return NewPreconditionError("profile not found")
		}
		if err := uow.DepositRepository().Create(ctx, deposit); err != nil {
			return fmt.Errorf("failed to create deposit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deposit, nil
}

func validateProofURL(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, NewValidationError("Invalid proof URL")
	}
	if !allowedProofExtensions[strings.ToLower(path.Ext(parsed.Path))] {
		return nil, NewValidationError("Proof must be a jpg, jpeg, png or webp image")
	}
	return &raw, nil
}

// ReviewDeposit approves or rejects a pending deposit. An approval credits the net
// amount to the member's vault, books the fee as income and then pays referral
// commissions out of the fee.
func (s *depositService) ReviewDeposit(ctx context.Context, caller Capability, depositID uuid.UUID, approve bool) (*models.DepositApproval, error) {
	if err := requireGovernor(caller); err != nil {
		return nil, err
	}

	var result *models.DepositApproval
	err := runTransition(ctx, s.uowFactory, "review_deposit", func(uow UnitOfWork) error {
		deposits := uow.DepositRepository()

		deposit, err := deposits.GetForUpdate(ctx, depositID)
		if err != nil {
			return fmt.Errorf("failed to get deposit: %w", err)
		}
		if deposit == nil || deposit.Status != models.RequestStatusPending {
			return NewPreconditionError("Deposit not found or not pending")
		}

		if !approve {
			if err := transitionDeposit(ctx, deposits, deposit, models.RequestStatusRejected, caller.UserID); err != nil {
				return err
			}
			result = &models.DepositApproval{Deposit: deposit}
			uow.EventBus().Publish(events.DepositReviewedEvent{
				DepositID:  deposit.ID,
				UserID:     deposit.UserID,
				Status:     deposit.Status,
				Amount:     deposit.Amount,
				ReviewedBy: caller.UserID,
			})
			return nil
		}

		snapshot, err := LoadSnapshot(ctx, uow.SettingsRepository())
		if err != nil {
			return err
		}
		if snapshot.SystemFrozen {
			return ErrSystemFrozen
		}

		fee := Percent(deposit.Amount, snapshot.DepositFeePct)
		net := deposit.Amount - fee

		if err := transitionDeposit(ctx, deposits, deposit, models.RequestStatusApproved, caller.UserID); err != nil {
			return err
		}

		_, err = ApplyBalanceChange(ctx, uow, BalanceChange{
			UserID:        deposit.UserID,
			Bucket:        models.BucketVault,
			Amount:        net,
			Type:          models.TransactionTypeDeposit,
			Description:   fmt.Sprintf("Deposit approved (%s - %s%% fee)", deposit.Amount, snapshot.DepositFeePct),
			ReferenceID:   refID(deposit.ID),
			ReferenceType: models.ReferenceTypeDeposit,
			Metadata: map[string]any{
				"gross": deposit.Amount.String(),
				"fee":   fee.String(),
			},
		})
		if err != nil {
			return err
		}

		if fee > 0 {
			if err := RecordIncome(ctx, uow, models.IncomeTypeDepositFee, fee,
				fmt.Sprintf("Deposit fee from %s", deposit.UserID.String()[:8]), refID(deposit.ID)); err != nil {
				return err
			}
		}

		result = &models.DepositApproval{Deposit: deposit, Fee: fee, Net: net}
		uow.EventBus().Publish(events.DepositReviewedEvent{
			DepositID:  deposit.ID,
			UserID:     deposit.UserID,
			Status:     deposit.Status,
			Amount:     deposit.Amount,
			Fee:        fee,
			ReviewedBy: caller.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"deposit_id":  depositID,
		"status":      result.Deposit.Status,
		"net":         result.Net,
		"fee":         result.Fee,
		"reviewed_by": caller.UserID,
	}).Info("Deposit reviewed")

	// Commissions commit separately; a failed payout never undoes the approval
	if result.Fee > 0 {
		commissions, err := s.referralService.DistributeReferralCommission(ctx, result.Deposit.ID, result.Deposit.UserID, result.Fee)
		if err != nil {
			log.WithFields(log.Fields{
				"deposit_id": depositID,
				"error":      err,
			}).Error("Referral distribution incomplete")
		}
		result.Commissions = commissions
	}

	return result, nil
}

func transitionDeposit(ctx context.Context, repo DepositRepository, deposit *models.Deposit, to models.RequestStatus, reviewer uuid.UUID) error {
	err := repo.TransitionStatus(ctx, deposit.ID, models.RequestStatusPending, to, reviewer)
	if errors.Is(err, ErrStatusConflict) {
		return NewPreconditionError("Deposit not found or not pending")
	}
	if err != nil {
		return fmt.Errorf("failed to update deposit status: %w", err)
	}
	deposit.Status = to
	deposit.ReviewedBy = &reviewer
	return nil
}

// ListPendingDeposits returns the deposits awaiting review, oldest first
func (s *depositService) ListPendingDeposits(ctx context.Context, caller Capability, limit int) ([]*models.Deposit, error) {
	if err := requireGovernor(caller); err != nil {
		return nil, err
	}

	var deposits []*models.Deposit
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		deposits, err = uow.DepositRepository().ListByStatus(ctx, models.RequestStatusPending, clampLimit(limit))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deposits: %w", err)
	}
	return deposits, nil
}
