package service

import (
	"context"
	"errors"
	"fmt"

	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// profitService implements the ProfitService interface
type profitService struct {
	uowFactory UnitOfWorkFactory
}

// NewProfitService creates a new profit service
func NewProfitService(uowFactory UnitOfWorkFactory) ProfitService {
	return &profitService{uowFactory: uowFactory}
}

// DistributeProfits shares the whole income pool among members in proportion to
// their vault balances. Each share is floored so the total never exceeds the pool.
func (s *profitService) DistributeProfits(ctx context.Context, caller Capability, year int) (*models.ProfitDistribution, error) {
	if err := requireGovernor(caller); err != nil {
		return nil, err
	}
	if year < models.MinProfitYear || year > models.MaxProfitYear {
		return nil, NewValidationError("Year must be between %d and %d", models.MinProfitYear, models.MaxProfitYear)
	}

	var distribution *models.ProfitDistribution
	err := runTransition(ctx, s.uowFactory, "distribute_profits", func(uow UnitOfWork) error {
		snapshot, err := LoadSnapshot(ctx, uow.SettingsRepository())
		if err != nil {
			return err
		}
		if snapshot.SystemFrozen {
			return ErrSystemFrozen
		}

		income := uow.AdminIncomeRepository()
		if err := income.LockPool(ctx); err != nil {
			return fmt.Errorf("failed to lock income pool: %w", err)
		}

		existing, err := uow.ProfitDistributionRepository().GetByYear(ctx, year)
		if err != nil {
			return fmt.Errorf("failed to check distribution for %d: %w", year, err)
		}
		if existing != nil {
			return NewPreconditionError("Profits for %d have already been distributed", year)
		}

		pool, err := income.Balance(ctx)
		if err != nil {
			return fmt.Errorf("failed to read income pool: %w", err)
		}
		if pool <= 0 {
			return NewPreconditionError("No profit available to distribute")
		}

		members, err := uow.ProfileRepository().ListWithPositiveVault(ctx)
		if err != nil {
			return fmt.Errorf("failed to list members: %w", err)
		}

		distribution = &models.ProfitDistribution{
			ID:          uuid.New(),
			Year:        year,
			TotalProfit: pool,
			CreatedBy:   caller.UserID,
		}

		shares := ProfitShares(pool, members)
		for _, member := range members {
			share := shares[member.UserID]
			if share <= 0 {
				continue
			}
			_, err := ApplyBalanceChange(ctx, uow, BalanceChange{
				UserID:        member.UserID,
				Bucket:        models.BucketVault,
				Amount:        share,
				Type:          models.TransactionTypeProfitShare,
				Description:   fmt.Sprintf("Profit share for %d", year),
				ReferenceID:   refID(distribution.ID),
				ReferenceType: models.ReferenceTypeProfitDistribution,
			})
			if err != nil {
				return err
			}
			distribution.DistributedAmount += share
			distribution.Members++
		}

		if distribution.DistributedAmount > 0 {
			if err := RecordIncome(ctx, uow, models.IncomeTypeProfitDistribution, -distribution.DistributedAmount,
				fmt.Sprintf("Profit distribution for %d", year), refID(distribution.ID)); err != nil {
				return err
			}
		}

		if err := uow.ProfitDistributionRepository().Create(ctx, distribution); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return NewPreconditionError("Profits for %d have already been distributed", year)
			}
			return fmt.Errorf("failed to record distribution: %w", err)
		}

		uow.EventBus().Publish(events.ProfitDistributedEvent{
			Year:        year,
			TotalProfit: pool,
			Distributed: distribution.DistributedAmount,
			Members:     distribution.Members,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"year":        year,
		"pool":        distribution.TotalProfit,
		"distributed": distribution.DistributedAmount,
		"members":     distribution.Members,
	}).Info("Profits distributed")

	return distribution, nil
}

// ProfitShares splits pool pro-rata by vault balance, flooring each share
func ProfitShares(pool models.Money, members []*models.Profile) map[uuid.UUID]models.Money {
	shares := make(map[uuid.UUID]models.Money, len(members))

	var total models.Money
	for _, m := range members {
		if m.VaultBalance > 0 {
			total += m.VaultBalance
		}
	}
	if total <= 0 || pool <= 0 {
		return shares
	}

	poolDec := pool.Decimal()
	totalDec := decimal.NewFromInt(int64(total))
	for _, m := range members {
		if m.VaultBalance <= 0 {
			continue
		}
		weight := decimal.NewFromInt(int64(m.VaultBalance))
		shares[m.UserID] = models.MoneyFromDecimalFloor(poolDec.Mul(weight).Div(totalDec))
	}
	return shares
}
