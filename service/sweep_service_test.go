package service

import (
	"context"
	"testing"
	"time"

	"cooplend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLoanService is a mock implementation of LoanService
type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) RequestLoan(ctx context.Context, caller Capability, req LoanRequest) (*models.Loan, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) ReviewLoan(ctx context.Context, caller Capability, loanID uuid.UUID, approve bool, reason string) (*models.Loan, error) {
	args := m.Called(ctx, caller, loanID, approve, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) FundLoan(ctx context.Context, caller Capability, loanID uuid.UUID) (*models.Loan, error) {
	args := m.Called(ctx, caller, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) RepayLoan(ctx context.Context, caller Capability, loanID uuid.UUID) (*models.RepaymentResult, error) {
	args := m.Called(ctx, caller, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RepaymentResult), args.Error(1)
}

func (m *MockLoanService) QuoteRepayment(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.RepaymentQuote, error) {
	args := m.Called(ctx, loanID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RepaymentQuote), args.Error(1)
}

func (m *MockLoanService) DefaultLoan(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.DefaultResult, error) {
	args := m.Called(ctx, loanID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DefaultResult), args.Error(1)
}

func (m *MockLoanService) ReleaseCollateral(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.Loan, error) {
	args := m.Called(ctx, loanID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) AccrueDailyInterest(ctx context.Context, loanID uuid.UUID, date time.Time) (models.Money, error) {
	args := m.Called(ctx, loanID, date)
	return args.Get(0).(models.Money), args.Error(1)
}

func (m *MockLoanService) ListMarketplaceLoans(ctx context.Context, limit int) ([]*models.Loan, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanService) ListLoansByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.Loan, error) {
	args := m.Called(ctx, borrowerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanService) ListApprovedLoans(ctx context.Context) ([]*models.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

// MockSettingsService is a mock implementation of SettingsService
type MockSettingsService struct {
	mock.Mock
}

func (m *MockSettingsService) Snapshot(ctx context.Context) (*models.SettingsSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SettingsSnapshot), args.Error(1)
}

func (m *MockSettingsService) IsFrozen(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettingsService) GetAll(ctx context.Context) ([]*models.Setting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Setting), args.Error(1)
}

func (m *MockSettingsService) UpdateSetting(ctx context.Context, caller Capability, key, value string) (*models.Setting, error) {
	args := m.Called(ctx, caller, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Setting), args.Error(1)
}

var sweepTestNow = time.Date(2026, 6, 1, 0, 5, 0, 0, time.UTC)

func approvedLoanCreated(createdAt time.Time, collateral models.Money) *models.Loan {
	lenderID := uuid.New()
	return &models.Loan{
		ID:               uuid.New(),
		BorrowerID:       uuid.New(),
		LenderID:         &lenderID,
		Principal:        models.NewMoney(100, 0),
		DurationDays:     30,
		CollateralAmount: collateral,
		Status:           models.LoanStatusApproved,
		CreatedAt:        createdAt,
	}
}

func TestSweepService_RunDailyInterest_SkippedWhenFrozen(t *testing.T) {
	ctx := context.Background()
	loans := new(MockLoanService)
	settings := new(MockSettingsService)
	settings.On("IsFrozen", ctx).Return(true, nil)
	factory := new(MockUnitOfWorkFactory)

	result, err := NewSweepService(factory, loans, settings).RunDailyInterest(ctx, sweepTestNow)

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	loans.AssertNotCalled(t, "ListApprovedLoans", mock.Anything)
	factory.AssertNotCalled(t, "Create")
}

func TestSweepService_RunDailyInterest_OncePerDay(t *testing.T) {
	ctx := context.Background()
	loans := new(MockLoanService)
	settings := new(MockSettingsService)
	settings.On("IsFrozen", ctx).Return(false, nil)

	readUow := NewMockUnitOfWork()
	readUow.ExpectTransaction(ctx, false)
	readUow.SweepRuns.On("GetByDate", ctx, models.SweepKindDailyInterest, StartOfDay(sweepTestNow)).
		Return(&models.SweepRun{Kind: models.SweepKindDailyInterest}, nil)

	result, err := NewSweepService(factoryFor(readUow), loans, settings).RunDailyInterest(ctx, sweepTestNow)

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "Already ran today", result.Reason)
	loans.AssertNotCalled(t, "AccrueDailyInterest", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepService_RunDailyInterest_CountsFailuresAndContinues(t *testing.T) {
	ctx := context.Background()
	date := StartOfDay(sweepTestNow)

	paying := approvedLoanCreated(sweepTestNow.AddDate(0, 0, -3), 0)
	accrued := approvedLoanCreated(sweepTestNow.AddDate(0, 0, -3), 0)
	broke := approvedLoanCreated(sweepTestNow.AddDate(0, 0, -3), 0)

	loans := new(MockLoanService)
	loans.On("ListApprovedLoans", ctx).Return([]*models.Loan{paying, accrued, broke}, nil)
	loans.On("AccrueDailyInterest", ctx, paying.ID, date).Return(models.Money(33), nil)
	loans.On("AccrueDailyInterest", ctx, accrued.ID, date).
		Return(models.Money(0), NewPreconditionError("Interest already accrued"))
	loans.On("AccrueDailyInterest", ctx, broke.ID, date).
		Return(models.Money(0), NewInsufficientFundsError("Insufficient vault balance", 33))

	settings := new(MockSettingsService)
	settings.On("IsFrozen", ctx).Return(false, nil)

	readUow := NewMockUnitOfWork()
	readUow.ExpectTransaction(ctx, false)
	readUow.SweepRuns.On("GetByDate", ctx, models.SweepKindDailyInterest, date).Return(nil, nil)

	recordUow := NewMockUnitOfWork()
	recordUow.ExpectTransaction(ctx, true)
	recordUow.SweepRuns.On("Record", ctx, mock.MatchedBy(func(run *models.SweepRun) bool {
		return run.Kind == models.SweepKindDailyInterest &&
			run.LoansProcessed == 1 &&
			run.LoansFailed == 1 &&
			run.TotalAmount == 33
	})).Return(nil)

	result, err := NewSweepService(factoryFor(readUow, recordUow), loans, settings).RunDailyInterest(ctx, sweepTestNow)

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, models.Money(33), result.Amount)
	loans.AssertExpectations(t)
	recordUow.AssertAllExpectations(t)
}

func TestSweepService_RunDefaultSweep_IgnoresFreezeAndLoansInGrace(t *testing.T) {
	ctx := context.Background()

	overdue := approvedLoanCreated(sweepTestNow.AddDate(0, 0, -40), models.NewMoney(50, 0))
	inGrace := approvedLoanCreated(sweepTestNow.AddDate(0, 0, -33), models.NewMoney(50, 0))

	loans := new(MockLoanService)
	loans.On("ListApprovedLoans", ctx).Return([]*models.Loan{overdue, inGrace}, nil)
	loans.On("DefaultLoan", ctx, overdue.ID, sweepTestNow).
		Return(&models.DefaultResult{Loan: overdue, CollateralTaken: models.NewMoney(50, 0)}, nil)

	settings := new(MockSettingsService)

	recordUow := NewMockUnitOfWork()
	recordUow.ExpectTransaction(ctx, true)
	recordUow.SweepRuns.On("Record", ctx, mock.Anything).Return(nil)

	result, err := NewSweepService(factoryFor(recordUow), loans, settings).RunDefaultSweep(ctx, sweepTestNow)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, models.NewMoney(50, 0), result.Amount)
	settings.AssertNotCalled(t, "IsFrozen", mock.Anything)
	loans.AssertNotCalled(t, "DefaultLoan", ctx, inGrace.ID, sweepTestNow)
}

func TestSweepService_RunCollateralRelease_OnlyInsideWindow(t *testing.T) {
	ctx := context.Background()

	inWindow := approvedLoanCreated(sweepTestNow.AddDate(0, 0, -33), models.NewMoney(50, 0))
	noCollateral := approvedLoanCreated(sweepTestNow.AddDate(0, 0, -33), 0)
	running := approvedLoanCreated(sweepTestNow.AddDate(0, 0, -5), models.NewMoney(50, 0))

	loans := new(MockLoanService)
	loans.On("ListApprovedLoans", ctx).Return([]*models.Loan{inWindow, noCollateral, running}, nil)
	loans.On("ReleaseCollateral", ctx, inWindow.ID, sweepTestNow).Return(inWindow, nil)

	settings := new(MockSettingsService)
	settings.On("IsFrozen", ctx).Return(false, nil)

	recordUow := NewMockUnitOfWork()
	recordUow.ExpectTransaction(ctx, true)
	recordUow.SweepRuns.On("Record", ctx, mock.Anything).Return(nil)

	result, err := NewSweepService(factoryFor(recordUow), loans, settings).RunCollateralRelease(ctx, sweepTestNow)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, models.NewMoney(50, 0), result.Amount)
	loans.AssertExpectations(t)
}

func TestSweepService_RunAll_Order(t *testing.T) {
	ctx := context.Background()

	loans := new(MockLoanService)
	loans.On("ListApprovedLoans", ctx).Return([]*models.Loan{}, nil)
	settings := new(MockSettingsService)
	settings.On("IsFrozen", ctx).Return(true, nil)

	recordUow := NewMockUnitOfWork()
	recordUow.ExpectTransaction(ctx, true)
	recordUow.SweepRuns.On("Record", ctx, mock.Anything).Return(nil)

	results, err := NewSweepService(factoryFor(recordUow), loans, settings).RunAll(ctx, sweepTestNow)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, models.SweepKindDefault, results[0].Kind)
	assert.False(t, results[0].Skipped)
	assert.Equal(t, models.SweepKindCollateralRelease, results[1].Kind)
	assert.True(t, results[1].Skipped)
	assert.Equal(t, models.SweepKindDailyInterest, results[2].Kind)
	assert.True(t, results[2].Skipped)
}
