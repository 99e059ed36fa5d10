package service

import (
	"context"
	"errors"
	"fmt"

	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// referralService implements the ReferralService interface
type referralService struct {
	uowFactory UnitOfWorkFactory
}

// NewReferralService creates a new referral commission distributor
func NewReferralService(uowFactory UnitOfWorkFactory) ReferralService {
	return &referralService{uowFactory: uowFactory}
}

// DistributeReferralCommission pays each of the beneficiary's ancestors a share of the
// deposit fee pool. Every payout commits on its own; a payout that was already made for
// this deposit is skipped, so the call is safe to replay.
func (s *referralService) DistributeReferralCommission(ctx context.Context, depositID uuid.UUID, beneficiary uuid.UUID, feePool models.Money) ([]*models.ReferralCommission, error) {
	if feePool <= 0 {
		return nil, nil
	}

	var snapshot *models.SettingsSnapshot
	var ancestors []*models.ReferralEdge
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		snapshot, err = LoadSnapshot(ctx, uow.SettingsRepository())
		if err != nil {
			return err
		}
		ancestors, err = uow.ReferralRepository().GetAncestors(ctx, beneficiary)
		if err != nil {
			return fmt.Errorf("failed to get referral chain: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var paid []*models.ReferralCommission
	var errs []error
	for _, edge := range ancestors {
		if edge.Level < 1 || edge.Level > models.MaxReferralLevel {
			continue
		}

		commission := models.MoneyFromDecimalFloor(feePool.Decimal().Mul(snapshot.ReferralRate(edge.Level)))
		if commission <= 0 {
			continue
		}

		payout := &models.ReferralCommission{
			AncestorID: edge.UserID,
			Level:      edge.Level,
			Amount:     commission,
		}
		err := s.payCommission(ctx, depositID, payout)
		if IsKind(err, KindPreconditionFailed) {
			log.WithFields(log.Fields{
				"deposit_id":  depositID,
				"ancestor_id": edge.UserID,
				"level":       edge.Level,
			}).Info("Referral commission already paid")
			continue
		}
		if err != nil {
			log.WithFields(log.Fields{
				"deposit_id":  depositID,
				"ancestor_id": edge.UserID,
				"level":       edge.Level,
				"error":       err,
			}).Error("Failed to pay referral commission")
			errs = append(errs, err)
			continue
		}
		paid = append(paid, payout)
	}

	return paid, errors.Join(errs...)
}

func (s *referralService) payCommission(ctx context.Context, depositID uuid.UUID, payout *models.ReferralCommission) error {
	return runTransition(ctx, s.uowFactory, "referral_commission", func(uow UnitOfWork) error {
		_, err := ApplyBalanceChange(ctx, uow, BalanceChange{
			UserID:        payout.AncestorID,
			Bucket:        models.BucketVault,
			Amount:        payout.Amount,
			Type:          models.TransactionTypeReferral,
			Description:   fmt.Sprintf("Referral commission (Level %d)", payout.Level),
			ReferenceID:   refID(depositID),
			ReferenceType: models.ReferenceTypeDeposit,
			Metadata: map[string]any{
				"level": payout.Level,
			},
		})
		if err != nil {
			return err
		}

		if err := RecordIncome(ctx, uow, models.IncomeTypeReferralPayout, -payout.Amount,
			fmt.Sprintf("Referral commission (Level %d)", payout.Level), refID(depositID)); err != nil {
			return err
		}

		uow.EventBus().Publish(events.ReferralPaidEvent{
			DepositID:  depositID,
			AncestorID: payout.AncestorID,
			Level:      payout.Level,
			Amount:     payout.Amount,
		})
		return nil
	})
}
