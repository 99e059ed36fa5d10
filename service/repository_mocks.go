package service

import (
	"context"
	"time"

	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockProfileRepository is a mock implementation of ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) LockMany(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Profile, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) GetByReferralCode(ctx context.Context, code string) (*models.Profile, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) Create(ctx context.Context, profile *models.NewProfile) (*models.Profile, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) AdjustBalance(ctx context.Context, userID uuid.UUID, bucket models.Bucket, delta models.Money) (models.Money, models.Money, error) {
	args := m.Called(ctx, userID, bucket, delta)
	return args.Get(0).(models.Money), args.Get(1).(models.Money), args.Error(2)
}

func (m *MockProfileRepository) ListWithPositiveVault(ctx context.Context) ([]*models.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) Totals(ctx context.Context) (*models.SystemTotals, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SystemTotals), args.Error(1)
}

// MockRoleRepository is a mock implementation of RoleRepository
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) GetRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Role), args.Error(1)
}

func (m *MockRoleRepository) Grant(ctx context.Context, userID uuid.UUID, role models.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) GetByReference(ctx context.Context, referenceID uuid.UUID) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) SumByBucket(ctx context.Context, userID uuid.UUID) (*models.BucketTotals, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BucketTotals), args.Error(1)
}

// MockAdminIncomeRepository is a mock implementation of AdminIncomeRepository
type MockAdminIncomeRepository struct {
	mock.Mock
}

func (m *MockAdminIncomeRepository) Record(ctx context.Context, entry *models.AdminIncomeEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAdminIncomeRepository) Balance(ctx context.Context) (models.Money, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Money), args.Error(1)
}

func (m *MockAdminIncomeRepository) LockPool(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockDepositRepository is a mock implementation of DepositRepository
type MockDepositRepository struct {
	mock.Mock
}

func (m *MockDepositRepository) Create(ctx context.Context, deposit *models.Deposit) error {
	args := m.Called(ctx, deposit)
	return args.Error(0)
}

func (m *MockDepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deposit), args.Error(1)
}

func (m *MockDepositRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deposit), args.Error(1)
}

func (m *MockDepositRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, reviewedBy uuid.UUID) error {
	args := m.Called(ctx, id, from, to, reviewedBy)
	return args.Error(0)
}

func (m *MockDepositRepository) ListByStatus(ctx context.Context, status models.RequestStatus, limit int) ([]*models.Deposit, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deposit), args.Error(1)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, reviewedBy uuid.UUID, reason *string) error {
	args := m.Called(ctx, id, from, to, reviewedBy, reason)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) ListByStatus(ctx context.Context, status models.RequestStatus, limit int) ([]*models.Withdrawal, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Withdrawal), args.Error(1)
}

// MockLoanRepository is a mock implementation of LoanRepository
type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) MarkReviewed(ctx context.Context, id uuid.UUID, governorID uuid.UUID) error {
	args := m.Called(ctx, id, governorID)
	return args.Error(0)
}

func (m *MockLoanRepository) Reject(ctx context.Context, id uuid.UUID, governorID uuid.UUID, reason *string) error {
	args := m.Called(ctx, id, governorID, reason)
	return args.Error(0)
}

func (m *MockLoanRepository) Fund(ctx context.Context, id uuid.UUID, lenderID uuid.UUID, fundedAt time.Time) error {
	args := m.Called(ctx, id, lenderID, fundedAt)
	return args.Error(0)
}

func (m *MockLoanRepository) Close(ctx context.Context, id uuid.UUID, to models.LoanStatus, closedAt time.Time) error {
	args := m.Called(ctx, id, to, closedAt)
	return args.Error(0)
}

func (m *MockLoanRepository) RecordAccrual(ctx context.Context, id uuid.UUID, date time.Time, amount models.Money) error {
	args := m.Called(ctx, id, date, amount)
	return args.Error(0)
}

func (m *MockLoanRepository) ListByStatus(ctx context.Context, status models.LoanStatus) ([]*models.Loan, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) ListMarketplace(ctx context.Context, limit int) ([]*models.Loan, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.Loan, error) {
	args := m.Called(ctx, borrowerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

// MockSettingsRepository is a mock implementation of SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetAll(ctx context.Context) ([]*models.Setting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Setting), args.Error(1)
}

func (m *MockSettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Setting), args.Error(1)
}

func (m *MockSettingsRepository) Upsert(ctx context.Context, key, value string, updatedBy uuid.UUID) error {
	args := m.Called(ctx, key, value, updatedBy)
	return args.Error(0)
}

// MockReferralRepository is a mock implementation of ReferralRepository
type MockReferralRepository struct {
	mock.Mock
}

func (m *MockReferralRepository) Create(ctx context.Context, edge *models.ReferralEdge) error {
	args := m.Called(ctx, edge)
	return args.Error(0)
}

func (m *MockReferralRepository) GetAncestors(ctx context.Context, referredUserID uuid.UUID) ([]*models.ReferralEdge, error) {
	args := m.Called(ctx, referredUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReferralEdge), args.Error(1)
}

// MockSweepRunRepository is a mock implementation of SweepRunRepository
type MockSweepRunRepository struct {
	mock.Mock
}

func (m *MockSweepRunRepository) GetByDate(ctx context.Context, kind models.SweepKind, date time.Time) (*models.SweepRun, error) {
	args := m.Called(ctx, kind, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SweepRun), args.Error(1)
}

func (m *MockSweepRunRepository) Record(ctx context.Context, run *models.SweepRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSweepRunRepository) GetLatest(ctx context.Context, kind models.SweepKind) (*models.SweepRun, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SweepRun), args.Error(1)
}

// MockProfitDistributionRepository is a mock implementation of ProfitDistributionRepository
type MockProfitDistributionRepository struct {
	mock.Mock
}

func (m *MockProfitDistributionRepository) GetByYear(ctx context.Context, year int) (*models.ProfitDistribution, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProfitDistribution), args.Error(1)
}

func (m *MockProfitDistributionRepository) Create(ctx context.Context, distribution *models.ProfitDistribution) error {
	args := m.Called(ctx, distribution)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Transaction control goes
// through testify expectations; the repository getters hand out the mocks below.
type MockUnitOfWork struct {
	mock.Mock

	Profiles      *MockProfileRepository
	Roles         *MockRoleRepository
	Ledger        *MockLedgerRepository
	Income        *MockAdminIncomeRepository
	Deposits      *MockDepositRepository
	Withdrawals   *MockWithdrawalRepository
	Loans         *MockLoanRepository
	Settings      *MockSettingsRepository
	Referrals     *MockReferralRepository
	SweepRuns     *MockSweepRunRepository
	Distributions *MockProfitDistributionRepository
	Events        *MockEventPublisher
}

// NewMockUnitOfWork creates a unit of work with a fresh mock for every repository
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		Profiles:      new(MockProfileRepository),
		Roles:         new(MockRoleRepository),
		Ledger:        new(MockLedgerRepository),
		Income:        new(MockAdminIncomeRepository),
		Deposits:      new(MockDepositRepository),
		Withdrawals:   new(MockWithdrawalRepository),
		Loans:         new(MockLoanRepository),
		Settings:      new(MockSettingsRepository),
		Referrals:     new(MockReferralRepository),
		SweepRuns:     new(MockSweepRunRepository),
		Distributions: new(MockProfitDistributionRepository),
		Events:        new(MockEventPublisher),
	}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) ProfileRepository() ProfileRepository { return m.Profiles }

func (m *MockUnitOfWork) RoleRepository() RoleRepository { return m.Roles }

func (m *MockUnitOfWork) LedgerRepository() LedgerRepository { return m.Ledger }

func (m *MockUnitOfWork) AdminIncomeRepository() AdminIncomeRepository { return m.Income }

func (m *MockUnitOfWork) DepositRepository() DepositRepository { return m.Deposits }

func (m *MockUnitOfWork) WithdrawalRepository() WithdrawalRepository { return m.Withdrawals }

func (m *MockUnitOfWork) LoanRepository() LoanRepository { return m.Loans }

func (m *MockUnitOfWork) SettingsRepository() SettingsRepository { return m.Settings }

func (m *MockUnitOfWork) ReferralRepository() ReferralRepository { return m.Referrals }

func (m *MockUnitOfWork) SweepRunRepository() SweepRunRepository { return m.SweepRuns }

func (m *MockUnitOfWork) ProfitDistributionRepository() ProfitDistributionRepository {
	return m.Distributions
}

func (m *MockUnitOfWork) EventBus() EventPublisher { return m.Events }

// ExpectTransaction sets up a unit of work that is expected to begin and
// roll back, and optionally commit
func (m *MockUnitOfWork) ExpectTransaction(ctx context.Context, commit bool) {
	m.On("Begin", ctx).Return(nil)
	m.On("Rollback").Return(nil)
	if commit {
		m.On("Commit").Return(nil)
	}
}

// AssertAllExpectations checks the unit of work and every repository mock
func (m *MockUnitOfWork) AssertAllExpectations(t mock.TestingT) {
	m.AssertExpectations(t)
	m.Profiles.AssertExpectations(t)
	m.Roles.AssertExpectations(t)
	m.Ledger.AssertExpectations(t)
	m.Income.AssertExpectations(t)
	m.Deposits.AssertExpectations(t)
	m.Withdrawals.AssertExpectations(t)
	m.Loans.AssertExpectations(t)
	m.Settings.AssertExpectations(t)
	m.Referrals.AssertExpectations(t)
	m.SweepRuns.AssertExpectations(t)
	m.Distributions.AssertExpectations(t)
	m.Events.AssertExpectations(t)
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
