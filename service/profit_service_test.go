package service

import (
	"context"
	"testing"

	"cooplend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProfitShares_ProRataAndFloored(t *testing.T) {
	a := &models.Profile{UserID: uuid.New(), VaultBalance: models.NewMoney(100, 0)}
	b := &models.Profile{UserID: uuid.New(), VaultBalance: models.NewMoney(200, 0)}
	c := &models.Profile{UserID: uuid.New(), VaultBalance: 0}

	shares := ProfitShares(models.NewMoney(10, 0), []*models.Profile{a, b, c})

	// 10.00 split 1:2 is 3.333... and 6.666..., both floored
	assert.Equal(t, models.Money(333), shares[a.UserID])
	assert.Equal(t, models.Money(666), shares[b.UserID])
	assert.NotContains(t, shares, c.UserID)
	assert.LessOrEqual(t, int64(shares[a.UserID]+shares[b.UserID]), int64(models.NewMoney(10, 0)))
}

func TestProfitService_DistributeProfits(t *testing.T) {
	ctx := context.Background()
	governor := GovernorCapability(uuid.New())

	t.Run("year out of range", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		_, err := NewProfitService(factory).DistributeProfits(ctx, governor, 2019)
		assert.True(t, IsKind(err, KindValidation))
		factory.AssertNotCalled(t, "Create")
	})

	t.Run("nothing to distribute", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		uow.ExpectTransaction(ctx, false)
		withSettings(uow, nil)
		uow.Income.On("LockPool", ctx).Return(nil)
		uow.Distributions.On("GetByYear", ctx, 2025).Return(nil, nil)
		uow.Income.On("Balance", ctx).Return(models.Money(0), nil)

		_, err := NewProfitService(factoryFor(uow)).DistributeProfits(ctx, governor, 2025)

		require.Error(t, err)
		assert.True(t, IsKind(err, KindPreconditionFailed))
		assert.Contains(t, err.Error(), "No profit available to distribute")
	})

	t.Run("already distributed", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		uow.ExpectTransaction(ctx, false)
		withSettings(uow, nil)
		uow.Income.On("LockPool", ctx).Return(nil)
		uow.Distributions.On("GetByYear", ctx, 2025).Return(&models.ProfitDistribution{Year: 2025}, nil)

		_, err := NewProfitService(factoryFor(uow)).DistributeProfits(ctx, governor, 2025)

		assert.True(t, IsKind(err, KindPreconditionFailed))
		uow.Income.AssertNotCalled(t, "Balance", mock.Anything)
	})

	t.Run("credits members and drains the pool", func(t *testing.T) {
		a := &models.Profile{UserID: uuid.New(), VaultBalance: models.NewMoney(100, 0)}
		b := &models.Profile{UserID: uuid.New(), VaultBalance: models.NewMoney(200, 0)}

		uow := NewMockUnitOfWork()
		uow.ExpectTransaction(ctx, true)
		withSettings(uow, nil)
		acceptLedgerAndEvents(uow)
		uow.Income.On("LockPool", ctx).Return(nil)
		uow.Distributions.On("GetByYear", ctx, 2025).Return(nil, nil)
		uow.Income.On("Balance", ctx).Return(models.NewMoney(10, 0), nil)
		uow.Profiles.On("ListWithPositiveVault", ctx).Return([]*models.Profile{a, b}, nil)
		expectAdjust(uow, a.UserID, models.BucketVault, 333, a.VaultBalance)
		expectAdjust(uow, b.UserID, models.BucketVault, 666, b.VaultBalance)
		uow.Income.On("Record", ctx, incomeOf(models.IncomeTypeProfitDistribution, -999)).Return(nil)
		uow.Distributions.On("Create", ctx, mock.MatchedBy(func(d *models.ProfitDistribution) bool {
			return d.Year == 2025 && d.TotalProfit == models.NewMoney(10, 0) && d.DistributedAmount == 999
		})).Return(nil)

		result, err := NewProfitService(factoryFor(uow)).DistributeProfits(ctx, governor, 2025)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Members)
		assert.Equal(t, models.Money(999), result.DistributedAmount)
		uow.AssertAllExpectations(t)
	})
}
