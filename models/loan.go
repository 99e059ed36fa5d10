package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus represents the state of a loan
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusCompleted LoanStatus = "completed"
	LoanStatusDefaulted LoanStatus = "defaulted"
	LoanStatusRejected  LoanStatus = "rejected"
)

// Loan bounds and grace period
const (
	MinLoanDurationDays = 7
	MaxLoanDurationDays = 365
	LoanGraceDays       = 7
)

// Loan is a collateralized loan between two members
type Loan struct {
	ID                 uuid.UUID       `db:"id"`
	BorrowerID         uuid.UUID       `db:"borrower_id"`
	LenderID           *uuid.UUID      `db:"lender_id"`
	Principal          Money           `db:"principal"`
	InterestRate       decimal.Decimal `db:"interest_rate"` // annual percent
	DurationDays       int             `db:"duration_days"`
	CollateralAmount   Money           `db:"collateral_amount"`
	Status             LoanStatus      `db:"status"`
	ReviewedByGovernor bool            `db:"reviewed_by_governor"`
	ReviewedBy         *uuid.UUID      `db:"reviewed_by"`
	RejectionReason    *string         `db:"rejection_reason"`
	InterestPaid       Money           `db:"interest_paid"`
	LastAccruedOn      *time.Time      `db:"last_accrued_on"`
	FundedAt           *time.Time      `db:"funded_at"`
	ClosedAt           *time.Time      `db:"closed_at"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// TermEnd is the moment the nominal duration elapses
func (l *Loan) TermEnd() time.Time {
	return l.CreatedAt.Add(time.Duration(l.DurationDays) * 24 * time.Hour)
}

// DefaultAt is the moment the grace period after the term elapses
func (l *Loan) DefaultAt() time.Time {
	return l.CreatedAt.Add(time.Duration(l.DurationDays+LoanGraceDays) * 24 * time.Hour)
}

// IsPastDefaultDeadline reports whether the loan may be defaulted at now
func (l *Loan) IsPastDefaultDeadline(now time.Time) bool {
	return !now.Before(l.DefaultAt())
}

// IsInReleaseWindow reports whether the term has elapsed but the grace period has not.
// The release window and the default deadline never overlap.
func (l *Loan) IsInReleaseWindow(now time.Time) bool {
	return !now.Before(l.TermEnd()) && now.Before(l.DefaultAt())
}

// IsMarketplaceListed reports whether lenders may fund the loan
func (l *Loan) IsMarketplaceListed() bool {
	return l.Status == LoanStatusPending && l.ReviewedByGovernor
}

// RepaymentQuote is what a borrower owes to close a loan
type RepaymentQuote struct {
	DaysElapsed  int   `json:"days_elapsed"`
	Interest     Money `json:"interest"`
	InterestPaid Money `json:"interest_paid"`
	InterestDue  Money `json:"interest_due"`
	TotalOwed    Money `json:"total_owed"`
}

// RepaymentResult is the outcome of a successful repayment
type RepaymentResult struct {
	Loan               *Loan
	Quote              RepaymentQuote
	LenderShare        Money
	SystemShare        Money
	CollateralReleased Money
}

// DefaultResult is the outcome of defaulting a loan
type DefaultResult struct {
	Loan              *Loan
	CollateralTaken   Money
	LendingWrittenOff Money
}
