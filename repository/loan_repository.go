package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cooplend/database"
	"cooplend/models"
	"cooplend/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// interest_rate travels as text so the decimal keeps its exact scale
const loanColumns = `
	id, borrower_id, lender_id, principal, interest_rate::text, duration_days,
	collateral_amount, status, reviewed_by_governor, reviewed_by, rejection_reason,
	interest_paid, last_accrued_on, funded_at, closed_at, created_at, updated_at`

// LoanRepository implements the LoanRepository interface
type LoanRepository struct {
	q queryable
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *database.DB) *LoanRepository {
	return &LoanRepository{q: db.Pool}
}

// newLoanRepositoryWithTx creates a new loan repository with a transaction
func newLoanRepositoryWithTx(tx queryable) *LoanRepository {
	return &LoanRepository{q: tx}
}

func scanLoan(row pgx.Row) (*models.Loan, error) {
	var loan models.Loan
	var rate string
	err := row.Scan(
		&loan.ID,
		&loan.BorrowerID,
		&loan.LenderID,
		&loan.Principal,
		&rate,
		&loan.DurationDays,
		&loan.CollateralAmount,
		&loan.Status,
		&loan.ReviewedByGovernor,
		&loan.ReviewedBy,
		&loan.RejectionReason,
		&loan.InterestPaid,
		&loan.LastAccruedOn,
		&loan.FundedAt,
		&loan.ClosedAt,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	loan.InterestRate, err = decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid interest rate %q on loan %s: %w", rate, loan.ID, err)
	}
	return &loan, nil
}

func collectLoans(rows pgx.Rows) ([]*models.Loan, error) {
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loans: %w", err)
	}
	return loans, nil
}

// expectOne turns an update that matched nothing into a status conflict
func expectOne(err error, affected int64, action string, id uuid.UUID) error {
	if err != nil {
		return fmt.Errorf("failed to %s loan %s: %w", action, id, err)
	}
	if affected == 0 {
		return service.ErrStatusConflict
	}
	return nil
}

// Create inserts a pending loan
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	query := `
		INSERT INTO loans (borrower_id, principal, interest_rate, duration_days, collateral_amount, status)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	if loan.Status == "" {
		loan.Status = models.LoanStatusPending
	}
	err := r.q.QueryRow(ctx, query,
		loan.BorrowerID,
		loan.Principal,
		loan.InterestRate.String(),
		loan.DurationDays,
		loan.CollateralAmount,
		loan.Status,
	).Scan(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create loan for %s: %w", loan.BorrowerID, err)
	}
	return nil
}

// GetByID retrieves a loan
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	loan, err := scanLoan(r.q.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %s: %w", id, err)
	}
	return loan, nil
}

// GetForUpdate retrieves a loan and locks its row
func (r *LoanRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	loan, err := scanLoan(r.q.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock loan %s: %w", id, err)
	}
	return loan, nil
}

// MarkReviewed lists a pending loan on the marketplace
func (r *LoanRepository) MarkReviewed(ctx context.Context, id uuid.UUID, governorID uuid.UUID) error {
	query := `
		UPDATE loans
		SET reviewed_by_governor = TRUE, reviewed_by = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND NOT reviewed_by_governor`

	tag, err := r.q.Exec(ctx, query, id, governorID)
	return expectOne(err, tag.RowsAffected(), "review", id)
}

// Reject closes a pending loan
func (r *LoanRepository) Reject(ctx context.Context, id uuid.UUID, governorID uuid.UUID, reason *string) error {
	query := `
		UPDATE loans
		SET status = 'rejected', reviewed_by = $2, rejection_reason = $3,
		    closed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.q.Exec(ctx, query, id, governorID, reason)
	return expectOne(err, tag.RowsAffected(), "reject", id)
}

// Fund assigns the lender of a reviewed pending loan and approves it
func (r *LoanRepository) Fund(ctx context.Context, id uuid.UUID, lenderID uuid.UUID, fundedAt time.Time) error {
	query := `
		UPDATE loans
		SET status = 'approved', lender_id = $2, funded_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND reviewed_by_governor AND lender_id IS NULL`

	tag, err := r.q.Exec(ctx, query, id, lenderID, fundedAt)
	return expectOne(err, tag.RowsAffected(), "fund", id)
}

// Close moves an approved loan to a terminal status
func (r *LoanRepository) Close(ctx context.Context, id uuid.UUID, to models.LoanStatus, closedAt time.Time) error {
	if to != models.LoanStatusCompleted && to != models.LoanStatusDefaulted {
		return fmt.Errorf("cannot close loan %s as %s", id, to)
	}

	query := `
		UPDATE loans
		SET status = $2, closed_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'approved'`

	tag, err := r.q.Exec(ctx, query, id, to, closedAt)
	return expectOne(err, tag.RowsAffected(), "close", id)
}

// RecordAccrual adds a day of interest unless the loan was already accrued for date
func (r *LoanRepository) RecordAccrual(ctx context.Context, id uuid.UUID, date time.Time, amount models.Money) error {
	query := `
		UPDATE loans
		SET interest_paid = interest_paid + $3, last_accrued_on = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'approved'
		  AND (last_accrued_on IS NULL OR last_accrued_on < $2)`

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	tag, err := r.q.Exec(ctx, query, id, day, amount)
	return expectOne(err, tag.RowsAffected(), "accrue interest on", id)
}

// ListByStatus returns loans in a status, oldest first
func (r *LoanRepository) ListByStatus(ctx context.Context, status models.LoanStatus) ([]*models.Loan, error) {
	rows, err := r.q.Query(ctx, `SELECT `+loanColumns+` FROM loans WHERE status = $1 ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s loans: %w", status, err)
	}
	return collectLoans(rows)
}

// ListMarketplace returns reviewed pending loans, newest first
func (r *LoanRepository) ListMarketplace(ctx context.Context, limit int) ([]*models.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = 'pending' AND reviewed_by_governor
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list marketplace loans: %w", err)
	}
	return collectLoans(rows)
}

// ListByBorrower returns every loan a member has requested, newest first
func (r *LoanRepository) ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.Loan, error) {
	rows, err := r.q.Query(ctx, `SELECT `+loanColumns+` FROM loans WHERE borrower_id = $1 ORDER BY created_at DESC`, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for %s: %w", borrowerID, err)
	}
	return collectLoans(rows)
}
