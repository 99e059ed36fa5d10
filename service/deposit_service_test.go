package service

import (
	"context"
	"errors"
	"testing"

	"cooplend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReferralService is a mock implementation of ReferralService
type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) DistributeReferralCommission(ctx context.Context, depositID uuid.UUID, beneficiary uuid.UUID, feePool models.Money) ([]*models.ReferralCommission, error) {
	args := m.Called(ctx, depositID, beneficiary, feePool)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReferralCommission), args.Error(1)
}

func pendingDeposit(userID uuid.UUID, amount models.Money) *models.Deposit {
	return &models.Deposit{
		ID:     uuid.New(),
		UserID: userID,
		Amount: amount,
		Status: models.RequestStatusPending,
	}
}

func TestDepositService_ReviewDeposit_ApproveCreditsNetAndBooksFee(t *testing.T) {
	ctx := context.Background()
	governor := GovernorCapability(uuid.New())
	memberID := uuid.New()
	deposit := pendingDeposit(memberID, models.NewMoney(500, 0))

	uow := NewMockUnitOfWork()
	uow.ExpectTransaction(ctx, true)
	withSettings(uow, nil)
	uow.Deposits.On("GetForUpdate", ctx, deposit.ID).Return(deposit, nil)
	uow.Deposits.On("TransitionStatus", ctx, deposit.ID, models.RequestStatusPending, models.RequestStatusApproved, governor.UserID).Return(nil)

	// 2% of 500.00 is kept as fee, 490.00 reaches the vault
	expectAdjust(uow, memberID, models.BucketVault, models.NewMoney(490, 0), 0)
	uow.Ledger.On("Record", ctx, ledgerOf(memberID, models.TransactionTypeDeposit, models.BucketVault, models.NewMoney(490, 0))).Return(nil)
	uow.Income.On("Record", ctx, incomeOf(models.IncomeTypeDepositFee, models.NewMoney(10, 0))).Return(nil)
	uow.Events.On("Publish", mock.Anything).Return()

	referrals := new(MockReferralService)
	referrals.On("DistributeReferralCommission", ctx, deposit.ID, memberID, models.NewMoney(10, 0)).
		Return([]*models.ReferralCommission{{AncestorID: uuid.New(), Level: 1, Amount: 50}}, nil)

	service := NewDepositService(factoryFor(uow), referrals)
	result, err := service.ReviewDeposit(ctx, governor, deposit.ID, true)

	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, result.Deposit.Status)
	assert.Equal(t, models.NewMoney(10, 0), result.Fee)
	assert.Equal(t, models.NewMoney(490, 0), result.Net)
	assert.Len(t, result.Commissions, 1)

	uow.AssertAllExpectations(t)
	referrals.AssertExpectations(t)
}

func TestDepositService_ReviewDeposit_CommissionFailureKeepsApproval(t *testing.T) {
	ctx := context.Background()
	governor := GovernorCapability(uuid.New())
	memberID := uuid.New()
	deposit := pendingDeposit(memberID, models.NewMoney(100, 0))

	uow := NewMockUnitOfWork()
	uow.ExpectTransaction(ctx, true)
	withSettings(uow, nil)
	acceptLedgerAndEvents(uow)
	uow.Deposits.On("GetForUpdate", ctx, deposit.ID).Return(deposit, nil)
	uow.Deposits.On("TransitionStatus", ctx, deposit.ID, models.RequestStatusPending, models.RequestStatusApproved, governor.UserID).Return(nil)
	expectAdjust(uow, memberID, models.BucketVault, models.NewMoney(98, 0), 0)
	uow.Income.On("Record", ctx, incomeOf(models.IncomeTypeDepositFee, models.NewMoney(2, 0))).Return(nil)

	referrals := new(MockReferralService)
	referrals.On("DistributeReferralCommission", ctx, deposit.ID, memberID, models.NewMoney(2, 0)).
		Return(nil, errors.New("connection reset"))

	service := NewDepositService(factoryFor(uow), referrals)
	result, err := service.ReviewDeposit(ctx, governor, deposit.ID, true)

	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, result.Deposit.Status)
	assert.Empty(t, result.Commissions)
}

func TestDepositService_ReviewDeposit_ApproveBlockedWhenFrozen(t *testing.T) {
	ctx := context.Background()
	governor := GovernorCapability(uuid.New())
	deposit := pendingDeposit(uuid.New(), models.NewMoney(500, 0))

	uow := NewMockUnitOfWork()
	uow.ExpectTransaction(ctx, false)
	withSettings(uow, map[string]string{models.SettingSystemFrozen: "true"})
	uow.Deposits.On("GetForUpdate", ctx, deposit.ID).Return(deposit, nil)

	referrals := new(MockReferralService)
	service := NewDepositService(factoryFor(uow), referrals)
	_, err := service.ReviewDeposit(ctx, governor, deposit.ID, true)

	require.Error(t, err)
	assert.True(t, IsKind(err, KindSystemFrozen))
	uow.Deposits.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	uow.Profiles.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	uow.AssertNotCalled(t, "Commit")
	referrals.AssertNotCalled(t, "DistributeReferralCommission", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDepositService_ReviewDeposit_RejectSkipsFreezeCheck(t *testing.T) {
	ctx := context.Background()
	governor := GovernorCapability(uuid.New())
	deposit := pendingDeposit(uuid.New(), models.NewMoney(500, 0))

	uow := NewMockUnitOfWork()
	uow.ExpectTransaction(ctx, true)
	uow.Deposits.On("GetForUpdate", ctx, deposit.ID).Return(deposit, nil)
	uow.Deposits.On("TransitionStatus", ctx, deposit.ID, models.RequestStatusPending, models.RequestStatusRejected, governor.UserID).Return(nil)
	uow.Events.On("Publish", mock.Anything).Return()

	referrals := new(MockReferralService)
	service := NewDepositService(factoryFor(uow), referrals)
	result, err := service.ReviewDeposit(ctx, governor, deposit.ID, false)

	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, result.Deposit.Status)
	assert.Zero(t, result.Fee)
	uow.Settings.AssertNotCalled(t, "GetAll", mock.Anything)
	uow.Profiles.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	uow.AssertAllExpectations(t)
}

func TestDepositService_ReviewDeposit_AlreadyReviewed(t *testing.T) {
	ctx := context.Background()
	governor := GovernorCapability(uuid.New())
	deposit := pendingDeposit(uuid.New(), models.NewMoney(500, 0))
	deposit.Status = models.RequestStatusApproved

	uow := NewMockUnitOfWork()
	uow.ExpectTransaction(ctx, false)
	uow.Deposits.On("GetForUpdate", ctx, deposit.ID).Return(deposit, nil)

	service := NewDepositService(factoryFor(uow), new(MockReferralService))
	_, err := service.ReviewDeposit(ctx, governor, deposit.ID, true)

	require.Error(t, err)
	assert.True(t, IsKind(err, KindPreconditionFailed))
	assert.Contains(t, err.Error(), "Deposit not found or not pending")
}

func TestDepositService_ReviewDeposit_LostRaceIsPreconditionFailed(t *testing.T) {
	ctx := context.Background()
	governor := GovernorCapability(uuid.New())
	deposit := pendingDeposit(uuid.New(), models.NewMoney(500, 0))

	uow := NewMockUnitOfWork()
	uow.ExpectTransaction(ctx, false)
	withSettings(uow, nil)
	uow.Deposits.On("GetForUpdate", ctx, deposit.ID).Return(deposit, nil)
	uow.Deposits.On("TransitionStatus", ctx, deposit.ID, models.RequestStatusPending, models.RequestStatusApproved, governor.UserID).
		Return(ErrStatusConflict)

	service := NewDepositService(factoryFor(uow), new(MockReferralService))
	_, err := service.ReviewDeposit(ctx, governor, deposit.ID, true)

	require.Error(t, err)
	assert.True(t, IsKind(err, KindPreconditionFailed))
	uow.Profiles.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDepositService_ReviewDeposit_RequiresGovernor(t *testing.T) {
	factory := new(MockUnitOfWorkFactory)
	service := NewDepositService(factory, new(MockReferralService))

	_, err := service.ReviewDeposit(context.Background(), MemberCapability(uuid.New()), uuid.New(), true)

	require.Error(t, err)
	assert.True(t, IsKind(err, KindForbidden))
	factory.AssertNotCalled(t, "Create")
}

func TestDepositService_SubmitDeposit(t *testing.T) {
	ctx := context.Background()
	member := MemberCapability(uuid.New())

	t.Run("rejects non-positive amount", func(t *testing.T) {
		service := NewDepositService(new(MockUnitOfWorkFactory), new(MockReferralService))
		_, err := service.SubmitDeposit(ctx, member, 0, "")
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("rejects proof that is not an image", func(t *testing.T) {
		service := NewDepositService(new(MockUnitOfWorkFactory), new(MockReferralService))
		_, err := service.SubmitDeposit(ctx, member, models.NewMoney(100, 0), "https://cdn.example.com/proof.pdf")
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("stores a pending deposit", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		uow.ExpectTransaction(ctx, true)
		uow.Profiles.On("GetByID", ctx, member.UserID).Return(&models.Profile{UserID: member.UserID}, nil)
		uow.Deposits.On("Create", ctx, mock.MatchedBy(func(d *models.Deposit) bool {
			return d.UserID == member.UserID && d.Status == models.RequestStatusPending && d.ProofURL != nil
		})).Return(nil)

		service := NewDepositService(factoryFor(uow), new(MockReferralService))
		deposit, err := service.SubmitDeposit(ctx, member, models.NewMoney(100, 0), "https://cdn.example.com/proofs/receipt.PNG")

		require.NoError(t, err)
		assert.Equal(t, models.NewMoney(100, 0), deposit.Amount)
		uow.AssertAllExpectations(t)
	})
}
