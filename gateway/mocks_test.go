package gateway

import (
	"context"
	"time"

	"cooplend/models"
	"cooplend/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockMemberService struct {
	mock.Mock
}

func (m *mockMemberService) RegisterMember(ctx context.Context, req service.RegisterMemberRequest) (*models.Profile, error) {
	args := m.Called(ctx, req)
	profile, _ := args.Get(0).(*models.Profile)
	return profile, args.Error(1)
}

func (m *mockMemberService) ResolveCapability(ctx context.Context, userID uuid.UUID) (service.Capability, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(service.Capability), args.Error(1)
}

func (m *mockMemberService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*models.Profile)
	return profile, args.Error(1)
}

func (m *mockMemberService) ListLedger(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, userID, limit)
	entries, _ := args.Get(0).([]*models.LedgerEntry)
	return entries, args.Error(1)
}

func (m *mockMemberService) SystemTotals(ctx context.Context, caller service.Capability) (*models.SystemTotals, error) {
	args := m.Called(ctx, caller)
	totals, _ := args.Get(0).(*models.SystemTotals)
	return totals, args.Error(1)
}

func (m *mockMemberService) Reconcile(ctx context.Context, userID uuid.UUID) (*models.Reconciliation, error) {
	args := m.Called(ctx, userID)
	result, _ := args.Get(0).(*models.Reconciliation)
	return result, args.Error(1)
}

type mockDepositService struct {
	mock.Mock
}

func (m *mockDepositService) SubmitDeposit(ctx context.Context, caller service.Capability, amount models.Money, proofURL string) (*models.Deposit, error) {
	args := m.Called(ctx, caller, amount, proofURL)
	deposit, _ := args.Get(0).(*models.Deposit)
	return deposit, args.Error(1)
}

func (m *mockDepositService) ReviewDeposit(ctx context.Context, caller service.Capability, depositID uuid.UUID, approve bool) (*models.DepositApproval, error) {
	args := m.Called(ctx, caller, depositID, approve)
	approval, _ := args.Get(0).(*models.DepositApproval)
	return approval, args.Error(1)
}

func (m *mockDepositService) ListPendingDeposits(ctx context.Context, caller service.Capability, limit int) ([]*models.Deposit, error) {
	args := m.Called(ctx, caller, limit)
	deposits, _ := args.Get(0).([]*models.Deposit)
	return deposits, args.Error(1)
}

type mockLoanService struct {
	mock.Mock
}

func (m *mockLoanService) RequestLoan(ctx context.Context, caller service.Capability, req service.LoanRequest) (*models.Loan, error) {
	args := m.Called(ctx, caller, req)
	loan, _ := args.Get(0).(*models.Loan)
	return loan, args.Error(1)
}

func (m *mockLoanService) ReviewLoan(ctx context.Context, caller service.Capability, loanID uuid.UUID, approve bool, reason string) (*models.Loan, error) {
	args := m.Called(ctx, caller, loanID, approve, reason)
	loan, _ := args.Get(0).(*models.Loan)
	return loan, args.Error(1)
}

func (m *mockLoanService) FundLoan(ctx context.Context, caller service.Capability, loanID uuid.UUID) (*models.Loan, error) {
	args := m.Called(ctx, caller, loanID)
	loan, _ := args.Get(0).(*models.Loan)
	return loan, args.Error(1)
}

func (m *mockLoanService) RepayLoan(ctx context.Context, caller service.Capability, loanID uuid.UUID) (*models.RepaymentResult, error) {
	args := m.Called(ctx, caller, loanID)
	result, _ := args.Get(0).(*models.RepaymentResult)
	return result, args.Error(1)
}

func (m *mockLoanService) QuoteRepayment(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.RepaymentQuote, error) {
	args := m.Called(ctx, loanID, now)
	quote, _ := args.Get(0).(*models.RepaymentQuote)
	return quote, args.Error(1)
}

func (m *mockLoanService) DefaultLoan(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.DefaultResult, error) {
	args := m.Called(ctx, loanID, now)
	result, _ := args.Get(0).(*models.DefaultResult)
	return result, args.Error(1)
}

func (m *mockLoanService) ReleaseCollateral(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.Loan, error) {
	args := m.Called(ctx, loanID, now)
	loan, _ := args.Get(0).(*models.Loan)
	return loan, args.Error(1)
}

func (m *mockLoanService) AccrueDailyInterest(ctx context.Context, loanID uuid.UUID, date time.Time) (models.Money, error) {
	args := m.Called(ctx, loanID, date)
	return args.Get(0).(models.Money), args.Error(1)
}

func (m *mockLoanService) ListMarketplaceLoans(ctx context.Context, limit int) ([]*models.Loan, error) {
	args := m.Called(ctx, limit)
	loans, _ := args.Get(0).([]*models.Loan)
	return loans, args.Error(1)
}

func (m *mockLoanService) ListLoansByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.Loan, error) {
	args := m.Called(ctx, borrowerID)
	loans, _ := args.Get(0).([]*models.Loan)
	return loans, args.Error(1)
}

func (m *mockLoanService) ListApprovedLoans(ctx context.Context) ([]*models.Loan, error) {
	args := m.Called(ctx)
	loans, _ := args.Get(0).([]*models.Loan)
	return loans, args.Error(1)
}

type mockSettingsService struct {
	mock.Mock
}

func (m *mockSettingsService) Snapshot(ctx context.Context) (*models.SettingsSnapshot, error) {
	args := m.Called(ctx)
	snapshot, _ := args.Get(0).(*models.SettingsSnapshot)
	return snapshot, args.Error(1)
}

func (m *mockSettingsService) IsFrozen(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockSettingsService) GetAll(ctx context.Context) ([]*models.Setting, error) {
	args := m.Called(ctx)
	settings, _ := args.Get(0).([]*models.Setting)
	return settings, args.Error(1)
}

func (m *mockSettingsService) UpdateSetting(ctx context.Context, caller service.Capability, key, value string) (*models.Setting, error) {
	args := m.Called(ctx, caller, key, value)
	setting, _ := args.Get(0).(*models.Setting)
	return setting, args.Error(1)
}

type mockSweepService struct {
	mock.Mock
}

func (m *mockSweepService) RunDailyInterest(ctx context.Context, now time.Time) (*models.SweepResult, error) {
	args := m.Called(ctx, now)
	result, _ := args.Get(0).(*models.SweepResult)
	return result, args.Error(1)
}

func (m *mockSweepService) RunDefaultSweep(ctx context.Context, now time.Time) (*models.SweepResult, error) {
	args := m.Called(ctx, now)
	result, _ := args.Get(0).(*models.SweepResult)
	return result, args.Error(1)
}

func (m *mockSweepService) RunCollateralRelease(ctx context.Context, now time.Time) (*models.SweepResult, error) {
	args := m.Called(ctx, now)
	result, _ := args.Get(0).(*models.SweepResult)
	return result, args.Error(1)
}

func (m *mockSweepService) RunAll(ctx context.Context, now time.Time) ([]*models.SweepResult, error) {
	args := m.Called(ctx, now)
	results, _ := args.Get(0).([]*models.SweepResult)
	return results, args.Error(1)
}
