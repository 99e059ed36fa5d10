package service

import (
	"context"
	"time"

	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
)

// ProfileRepository defines the interface for member profile data access
type ProfileRepository interface {
	// GetByID retrieves a profile, returning nil when it does not exist
	GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)

	// GetForUpdate retrieves a profile and locks its row until the transaction ends
	GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.Profile, error)

	// LockMany locks several profiles in user id order and returns them keyed by id
	LockMany(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Profile, error)

	// GetByReferralCode resolves a referral code to its owner
	GetByReferralCode(ctx context.Context, code string) (*models.Profile, error)

	// Create inserts a zero-balance profile
	Create(ctx context.Context, profile *models.NewProfile) (*models.Profile, error)

	// AdjustBalance adds delta to one bucket, failing with ErrInsufficientBalance
	// when the bucket would go negative
	AdjustBalance(ctx context.Context, userID uuid.UUID, bucket models.Bucket, delta models.Money) (before, after models.Money, err error)

	// ListWithPositiveVault returns every profile holding vault funds
	ListWithPositiveVault(ctx context.Context) ([]*models.Profile, error)

	// Totals sums balances across all profiles
	Totals(ctx context.Context) (*models.SystemTotals, error)
}

// RoleRepository defines the interface for role lookups
type RoleRepository interface {
	GetRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error)
	Grant(ctx context.Context, userID uuid.UUID, role models.Role) error
}

// LedgerRepository defines the interface for the member ledger
type LedgerRepository interface {
	// Record appends an entry; a replayed referral payout returns ErrDuplicate
	Record(ctx context.Context, entry *models.LedgerEntry) error

	// GetByUser returns the newest entries for a member
	GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)

	// GetByReference returns every entry written for one deposit, withdrawal, loan or distribution
	GetByReference(ctx context.Context, referenceID uuid.UUID) ([]*models.LedgerEntry, error)

	// SumByBucket sums a member's ledger per bucket
	SumByBucket(ctx context.Context, userID uuid.UUID) (*models.BucketTotals, error)
}

// AdminIncomeRepository defines the interface for the system income ledger
type AdminIncomeRepository interface {
	Record(ctx context.Context, entry *models.AdminIncomeEntry) error

	// Balance is the sum of every income entry
	Balance(ctx context.Context) (models.Money, error)

	// LockPool serializes transitions that read the pool balance
	LockPool(ctx context.Context) error
}

// DepositRepository defines the interface for deposit requests
type DepositRepository interface {
	Create(ctx context.Context, deposit *models.Deposit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error)

	// TransitionStatus moves a deposit from one status to another, returning
	// ErrStatusConflict when it is no longer in the from status
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, reviewedBy uuid.UUID) error

	ListByStatus(ctx context.Context, status models.RequestStatus, limit int) ([]*models.Deposit, error)
}

// WithdrawalRepository defines the interface for withdrawal requests
type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, reviewedBy uuid.UUID, reason *string) error
	ListByStatus(ctx context.Context, status models.RequestStatus, limit int) ([]*models.Withdrawal, error)
}

// LoanRepository defines the interface for loan data access.
// Every state change is a compare-and-set that returns ErrStatusConflict
// when the loan is no longer in the expected state.
type LoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error)

	// MarkReviewed lists a pending loan on the marketplace
	MarkReviewed(ctx context.Context, id uuid.UUID, governorID uuid.UUID) error

	// Reject closes a pending loan
	Reject(ctx context.Context, id uuid.UUID, governorID uuid.UUID, reason *string) error

	// Fund assigns the lender of a reviewed pending loan and approves it
	Fund(ctx context.Context, id uuid.UUID, lenderID uuid.UUID, fundedAt time.Time) error

	// Close moves an approved loan to a terminal status
	Close(ctx context.Context, id uuid.UUID, to models.LoanStatus, closedAt time.Time) error

	// RecordAccrual adds a day of interest unless the loan was already accrued for date
	RecordAccrual(ctx context.Context, id uuid.UUID, date time.Time, amount models.Money) error

	ListByStatus(ctx context.Context, status models.LoanStatus) ([]*models.Loan, error)
	ListMarketplace(ctx context.Context, limit int) ([]*models.Loan, error)
	ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.Loan, error)
}

// SettingsRepository defines the interface for system settings
type SettingsRepository interface {
	GetAll(ctx context.Context) ([]*models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key, value string, updatedBy uuid.UUID) error
}

// ReferralRepository defines the interface for the referral tree
type ReferralRepository interface {
	Create(ctx context.Context, edge *models.ReferralEdge) error

	// GetAncestors returns the edges pointing at a member ordered by level
	GetAncestors(ctx context.Context, referredUserID uuid.UUID) ([]*models.ReferralEdge, error)
}

// SweepRunRepository defines the interface for sweep bookkeeping
type SweepRunRepository interface {
	// GetByDate returns the run of a kind for the day containing date
	GetByDate(ctx context.Context, kind models.SweepKind, date time.Time) (*models.SweepRun, error)

	// Record stores a run, adding to the counters of an earlier run on the same day
	Record(ctx context.Context, run *models.SweepRun) error

	GetLatest(ctx context.Context, kind models.SweepKind) (*models.SweepRun, error)
}

// ProfitDistributionRepository defines the interface for annual distributions
type ProfitDistributionRepository interface {
	GetByYear(ctx context.Context, year int) (*models.ProfitDistribution, error)
	Create(ctx context.Context, distribution *models.ProfitDistribution) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// MemberService defines registration, role resolution and read models
type MemberService interface {
	// RegisterMember creates a profile and its referral edges
	RegisterMember(ctx context.Context, req RegisterMemberRequest) (*models.Profile, error)

	// ResolveCapability looks up what the caller may do
	ResolveCapability(ctx context.Context, userID uuid.UUID) (Capability, error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	ListLedger(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)

	// SystemTotals sums balances across members and the income pool
	SystemTotals(ctx context.Context, caller Capability) (*models.SystemTotals, error)

	// Reconcile compares a member's balances with their ledger
	Reconcile(ctx context.Context, userID uuid.UUID) (*models.Reconciliation, error)
}

// DepositService defines deposit submission and review
type DepositService interface {
	SubmitDeposit(ctx context.Context, caller Capability, amount models.Money, proofURL string) (*models.Deposit, error)
	ReviewDeposit(ctx context.Context, caller Capability, depositID uuid.UUID, approve bool) (*models.DepositApproval, error)
	ListPendingDeposits(ctx context.Context, caller Capability, limit int) ([]*models.Deposit, error)
}

// WithdrawalService defines withdrawal requests and review
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, caller Capability, req WithdrawalRequest) (*models.Withdrawal, error)
	ReviewWithdrawal(ctx context.Context, caller Capability, withdrawalID uuid.UUID, approve bool, reason string) (*models.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context, caller Capability, limit int) ([]*models.Withdrawal, error)
}

// LoanService defines the loan state machine
type LoanService interface {
	RequestLoan(ctx context.Context, caller Capability, req LoanRequest) (*models.Loan, error)
	ReviewLoan(ctx context.Context, caller Capability, loanID uuid.UUID, approve bool, reason string) (*models.Loan, error)
	FundLoan(ctx context.Context, caller Capability, loanID uuid.UUID) (*models.Loan, error)
	RepayLoan(ctx context.Context, caller Capability, loanID uuid.UUID) (*models.RepaymentResult, error)

	// QuoteRepayment computes what the borrower would owe at now without changing anything
	QuoteRepayment(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.RepaymentQuote, error)

	DefaultLoan(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.DefaultResult, error)
	ReleaseCollateral(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.Loan, error)

	// AccrueDailyInterest charges one day of interest for date
	AccrueDailyInterest(ctx context.Context, loanID uuid.UUID, date time.Time) (models.Money, error)

	ListMarketplaceLoans(ctx context.Context, limit int) ([]*models.Loan, error)
	ListLoansByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.Loan, error)
	ListApprovedLoans(ctx context.Context) ([]*models.Loan, error)
}

// ReferralService defines commission payouts from deposit fees
type ReferralService interface {
	// DistributeReferralCommission pays each ancestor of beneficiary from feePool
	DistributeReferralCommission(ctx context.Context, depositID uuid.UUID, beneficiary uuid.UUID, feePool models.Money) ([]*models.ReferralCommission, error)
}

// SettingsService defines reads and governor updates of system settings
type SettingsService interface {
	Snapshot(ctx context.Context) (*models.SettingsSnapshot, error)
	IsFrozen(ctx context.Context) (bool, error)
	GetAll(ctx context.Context) ([]*models.Setting, error)
	UpdateSetting(ctx context.Context, caller Capability, key, value string) (*models.Setting, error)
}

// ProfitService defines the annual distribution of the income pool
type ProfitService interface {
	DistributeProfits(ctx context.Context, caller Capability, year int) (*models.ProfitDistribution, error)
}

// SweepService defines the scheduled sweeps over approved loans
type SweepService interface {
	RunDailyInterest(ctx context.Context, now time.Time) (*models.SweepResult, error)
	RunDefaultSweep(ctx context.Context, now time.Time) (*models.SweepResult, error)
	RunCollateralRelease(ctx context.Context, now time.Time) (*models.SweepResult, error)

	// RunAll runs the default, release and interest sweeps in that order
	RunAll(ctx context.Context, now time.Time) ([]*models.SweepResult, error)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	ProfileRepository() ProfileRepository
	RoleRepository() RoleRepository
	LedgerRepository() LedgerRepository
	AdminIncomeRepository() AdminIncomeRepository
	DepositRepository() DepositRepository
	WithdrawalRepository() WithdrawalRepository
	LoanRepository() LoanRepository
	SettingsRepository() SettingsRepository
	ReferralRepository() ReferralRepository
	SweepRunRepository() SweepRunRepository
	ProfitDistributionRepository() ProfitDistributionRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
