package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var maxLoanRate = decimal.NewFromInt(100)

// loanService implements the LoanService interface
type loanService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(uowFactory UnitOfWorkFactory) LoanService {
	return &loanService{
		uowFactory: uowFactory,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RequestLoan validates a borrower's request, locks the collateral and lists the
// loan as pending governor review
func (s *loanService) RequestLoan(ctx context.Context, caller Capability, req LoanRequest) (*models.Loan, error) {
	if req.Principal <= 0 {
		return nil, NewValidationError("Invalid principal amount")
	}
	if req.Collateral < 0 {
		return nil, NewValidationError("Invalid collateral amount")
	}
	if req.DurationDays < models.MinLoanDurationDays || req.DurationDays > models.MaxLoanDurationDays {
		return nil, NewValidationError("Duration must be between %d and %d days", models.MinLoanDurationDays, models.MaxLoanDurationDays)
	}
	if req.InterestRate != nil && (req.InterestRate.IsNegative() || req.InterestRate.GreaterThan(maxLoanRate)) {
		return nil, NewValidationError("Interest rate must be between 0 and %s", maxLoanRate)
	}

	now := s.now()
	var loan *models.Loan
	err := runTransition(ctx, s.uowFactory, "request_loan", func(uow UnitOfWork) error {
		snapshot, err := LoadSnapshot(ctx, uow.SettingsRepository())
		if err != nil {
			return err
		}
		if snapshot.SystemFrozen {
			return ErrSystemFrozen
		}

		profile, err := uow.ProfileRepository().GetForUpdate(ctx, caller.UserID)
		if err != nil {
			return fmt.Errorf("failed to lock profile: %w", err)
		}
		if profile == nil {
			return NewPreconditionError("Profile not found")
		}

		minAge := time.Duration(snapshot.MinAccountAgeDays) * 24 * time.Hour
		if profile.AccountAge(now) < minAge {
			return NewValidationError("Account must be at least %d days old", snapshot.MinAccountAgeDays)
		}

		if req.Principal > PercentFloor(profile.VaultBalance, snapshot.MaxLoanRatio) {
			return NewValidationError("Loan cannot exceed %s%% of vault balance", snapshot.MaxLoanRatio)
		}

		if available := profile.AvailableForCollateral(); req.Collateral > available {
			return NewValidationError("Insufficient available balance for collateral, short by %s", req.Collateral-available)
		}

		rate := snapshot.BaseInterestRate
		if req.InterestRate != nil {
			rate = *req.InterestRate
		}

		loan = &models.Loan{
			BorrowerID:       caller.UserID,
			Principal:        req.Principal,
			InterestRate:     rate,
			DurationDays:     req.DurationDays,
			CollateralAmount: req.Collateral,
			Status:           models.LoanStatusPending,
		}
		if err := uow.LoanRepository().Create(ctx, loan); err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}

		if loan.CollateralAmount > 0 {
			err := moveBetweenBuckets(ctx, uow, models.BucketVault, models.BucketFrozen, BalanceChange{
				UserID:        caller.UserID,
				Amount:        loan.CollateralAmount,
				Type:          models.TransactionTypeCollateralLock,
				Description:   "Collateral locked for loan request",
				ReferenceID:   refID(loan.ID),
				ReferenceType: models.ReferenceTypeLoan,
			})
			if err != nil {
				return err
			}
		}

		publishLoanState(uow, loan, "")
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"loan_id":     loan.ID,
		"borrower_id": loan.BorrowerID,
		"principal":   loan.Principal,
		"collateral":  loan.CollateralAmount,
		"duration":    loan.DurationDays,
	}).Info("Loan requested")

	return loan, nil
}

// ReviewLoan lists a pending loan on the marketplace or rejects it and returns the collateral
func (s *loanService) ReviewLoan(ctx context.Context, caller Capability, loanID uuid.UUID, approve bool, reason string) (*models.Loan, error) {
	if err := requireGovernor(caller); err != nil {
		return nil, err
	}

	var loan *models.Loan
	err := runTransition(ctx, s.uowFactory, "review_loan", func(uow UnitOfWork) error {
		loans := uow.LoanRepository()

		var err error
		loan, err = loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return fmt.Errorf("failed to get loan: %w", err)
		}
		if loan == nil || loan.Status != models.LoanStatusPending {
			return NewPreconditionError("Loan not found or not pending")
		}

		if approve {
			snapshot, err := LoadSnapshot(ctx, uow.SettingsRepository())
			if err != nil {
				return err
			}
			if snapshot.SystemFrozen {
				return ErrSystemFrozen
			}
			if loan.ReviewedByGovernor {
				return NewPreconditionError("Loan already reviewed")
			}
			if err := loans.MarkReviewed(ctx, loan.ID, caller.UserID); err != nil {
				return loanConflict(err, "Loan not found or not pending")
			}
			loan.ReviewedByGovernor = true
			loan.ReviewedBy = &caller.UserID
			publishLoanState(uow, loan, models.LoanStatusPending)
			return nil
		}

		var rejection *string
		if reason != "" {
			rejection = &reason
		}
		if err := loans.Reject(ctx, loan.ID, caller.UserID, rejection); err != nil {
			return loanConflict(err, "Loan not found or not pending")
		}

		if err := s.releaseFrozen(ctx, uow, loan, "Collateral released (loan rejected)"); err != nil {
			return err
		}

		loan.Status = models.LoanStatusRejected
		loan.ReviewedBy = &caller.UserID
		loan.RejectionReason = rejection
		publishLoanState(uow, loan, models.LoanStatusPending)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"loan_id":     loanID,
		"approve":     approve,
		"reviewed_by": caller.UserID,
	}).Info("Loan reviewed")

	return loan, nil
}

// FundLoan moves the principal from the lender's vault to the borrower's and
// approves the loan. Only one of several concurrent funders can win.
func (s *loanService) FundLoan(ctx context.Context, caller Capability, loanID uuid.UUID) (*models.Loan, error) {
	now := s.now()
	var loan *models.Loan
	err := runTransition(ctx, s.uowFactory, "fund_loan", func(uow UnitOfWork) error {
		snapshot, err := LoadSnapshot(ctx, uow.SettingsRepository())
		if err != nil {
			return err
		}
		if snapshot.SystemFrozen {
			return ErrSystemFrozen
		}

		loans := uow.LoanRepository()
		loan, err = loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return fmt.Errorf("failed to get loan: %w", err)
		}
		if loan == nil || !loan.IsMarketplaceListed() {
			return NewPreconditionError("Loan not available for funding")
		}
		if loan.BorrowerID == caller.UserID {
			return NewValidationError("You cannot fund your own loan")
		}

		profiles, err := uow.ProfileRepository().LockMany(ctx, []uuid.UUID{caller.UserID, loan.BorrowerID})
		if err != nil {
			return fmt.Errorf("failed to lock profiles: %w", err)
		}
		lender, ok := profiles[caller.UserID]
		if !ok {
			return NewPreconditionError("Profile not found")
		}
		if lender.VaultBalance < loan.Principal {
			return NewInsufficientFundsError("Insufficient vault balance to fund this loan", loan.Principal-lender.VaultBalance)
		}

		if err := loans.Fund(ctx, loan.ID, caller.UserID, now); err != nil {
			return loanConflict(err, "Loan not available for funding")
		}

		base := BalanceChange{
			Amount:        loan.Principal,
			ReferenceID:   refID(loan.ID),
			ReferenceType: models.ReferenceTypeLoan,
		}

		lenderDebit := base
		lenderDebit.UserID = caller.UserID
		lenderDebit.Type = models.TransactionTypeLoanFunding
		lenderDebit.Description = "Loan funded"
		if err := moveBetweenBuckets(ctx, uow, models.BucketVault, models.BucketLending, lenderDebit); err != nil {
			return err
		}

		borrowerCredit := base
		borrowerCredit.UserID = loan.BorrowerID
		borrowerCredit.Bucket = models.BucketVault
		borrowerCredit.Type = models.TransactionTypeLoanReceived
		borrowerCredit.Description = "Loan received"
		if _, err := ApplyBalanceChange(ctx, uow, borrowerCredit); err != nil {
			return err
		}

		loan.Status = models.LoanStatusApproved
		loan.LenderID = &caller.UserID
		loan.FundedAt = &now
		publishLoanState(uow, loan, models.LoanStatusPending)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"loan_id":   loan.ID,
		"lender_id": caller.UserID,
		"principal": loan.Principal,
	}).Info("Loan funded")

	return loan, nil
}

// RepayLoan closes an approved loan: the borrower pays principal plus the interest
// not yet charged by the daily sweep, the collateral is released and the lender is
// paid principal plus their share of the interest
func (s *loanService) RepayLoan(ctx context.Context, caller Capability, loanID uuid.UUID) (*models.RepaymentResult, error) {
	now := s.now()
	var result *models.RepaymentResult
	err := runTransition(ctx, s.uowFactory, "repay_loan", func(uow UnitOfWork) error {
		snapshot, err := LoadSnapshot(ctx, uow.SettingsRepository())
		if err != nil {
			return err
		}
		if snapshot.SystemFrozen {
			return ErrSystemFrozen
		}

		loans := uow.LoanRepository()
		loan, err := loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return fmt.Errorf("failed to get loan: %w", err)
		}
		if loan == nil {
			return NewPreconditionError("Loan not found")
		}
		if loan.BorrowerID != caller.UserID {
			return NewForbiddenError("Only the borrower can repay this loan")
		}
		if loan.Status != models.LoanStatusApproved {
			return NewPreconditionError("Loan is not active")
		}
		if loan.LenderID == nil {
			return fmt.Errorf("approved loan %s has no lender", loan.ID)
		}
		lenderID := *loan.LenderID

		quote := QuoteRepayment(loan, now)

		profiles, err := uow.ProfileRepository().LockMany(ctx, []uuid.UUID{loan.BorrowerID, lenderID})
		if err != nil {
			return fmt.Errorf("failed to lock profiles: %w", err)
		}
		borrower, ok := profiles[loan.BorrowerID]
		if !ok {
			return NewPreconditionError("Profile not found")
		}
		lender, ok := profiles[lenderID]
		if !ok {
			return NewPreconditionError("Lender profile not found")
		}
		if borrower.VaultBalance < quote.TotalOwed {
			return NewInsufficientFundsError("Insufficient balance to repay this loan", quote.TotalOwed-borrower.VaultBalance)
		}

		if err := loans.Close(ctx, loan.ID, models.LoanStatusCompleted, now); err != nil {
			return loanConflict(err, "Loan is not active")
		}

		ref := refID(loan.ID)
		_, err = ApplyBalanceChange(ctx, uow, BalanceChange{
			UserID:        loan.BorrowerID,
			Bucket:        models.BucketVault,
			Amount:        -quote.TotalOwed,
			Type:          models.TransactionTypeLoanRepayment,
			Description:   fmt.Sprintf("Loan repaid after %d days", quote.DaysElapsed),
			ReferenceID:   ref,
			ReferenceType: models.ReferenceTypeLoan,
			Metadata: map[string]any{
				"principal":    loan.Principal.String(),
				"interest_due": quote.InterestDue.String(),
				"days_elapsed": quote.DaysElapsed,
			},
		})
		if err != nil {
			return err
		}

		released := models.MinMoney(loan.CollateralAmount, borrower.FrozenBalance)
		if released > 0 {
			err := moveBetweenBuckets(ctx, uow, models.BucketFrozen, models.BucketVault, BalanceChange{
				UserID:        loan.BorrowerID,
				Amount:        released,
				Type:          models.TransactionTypeCollateralRelease,
				Description:   "Collateral released (loan repaid)",
				ReferenceID:   ref,
				ReferenceType: models.ReferenceTypeLoan,
			})
			if err != nil {
				return err
			}
		}

		lenderShare := Percent(quote.InterestDue, snapshot.LenderSharePct)
		systemShare := quote.InterestDue - lenderShare

		_, err = ApplyBalanceChange(ctx, uow, BalanceChange{
			UserID:        lenderID,
			Bucket:        models.BucketVault,
			Amount:        loan.Principal + lenderShare,
			Type:          models.TransactionTypeLoanRepaymentReceived,
			Description:   "Loan repayment received",
			ReferenceID:   ref,
			ReferenceType: models.ReferenceTypeLoan,
		})
		if err != nil {
			return err
		}

		_, err = ApplyBalanceChange(ctx, uow, BalanceChange{
			UserID:        lenderID,
			Bucket:        models.BucketLending,
			Amount:        -models.MinMoney(loan.Principal, lender.LendingBalance),
			Type:          models.TransactionTypeLoanRepaymentReceived,
			Description:   "Loan principal returned",
			ReferenceID:   ref,
			ReferenceType: models.ReferenceTypeLoan,
		})
		if err != nil {
			return err
		}

		if systemShare > 0 {
			if err := RecordIncome(ctx, uow, models.IncomeTypeInterestSpread, systemShare,
				"Interest spread on loan repayment", ref); err != nil {
				return err
			}
		}

		loan.Status = models.LoanStatusCompleted
		loan.ClosedAt = &now
		publishLoanState(uow, loan, models.LoanStatusApproved)

		result = &models.RepaymentResult{
			Loan:               loan,
			Quote:              quote,
			LenderShare:        lenderShare,
			SystemShare:        systemShare,
			CollateralReleased: released,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"loan_id":      loanID,
		"total_owed":   result.Quote.TotalOwed,
		"interest_due": result.Quote.InterestDue,
		"days_elapsed": result.Quote.DaysElapsed,
	}).Info("Loan repaid")

	return result, nil
}

// QuoteRepayment computes what the borrower would owe at now
func (s *loanService) QuoteRepayment(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.RepaymentQuote, error) {
	var loan *models.Loan
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		loan, err = uow.LoanRepository().GetByID(ctx, loanID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil || loan.Status != models.LoanStatusApproved {
		return nil, NewPreconditionError("Loan is not active")
	}

	quote := QuoteRepayment(loan, now)
	return &quote, nil
}

// DefaultLoan seizes the collateral of an approved loan whose term and grace period
// have both elapsed and hands it to the lender
func (s *loanService) DefaultLoan(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.DefaultResult, error) {
	var result *models.DefaultResult
	err := runTransition(ctx, s.uowFactory, "default_loan", func(uow UnitOfWork) error {
		loans := uow.LoanRepository()
		loan, err := loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return fmt.Errorf("failed to get loan: %w", err)
		}
		if loan == nil || loan.Status != models.LoanStatusApproved {
			return NewPreconditionError("Loan not found or not active")
		}
		if !loan.IsPastDefaultDeadline(now) {
			return NewPreconditionError("Loan is not past its default deadline")
		}

		ids := []uuid.UUID{loan.BorrowerID}
		if loan.LenderID != nil {
			ids = append(ids, *loan.LenderID)
		}
		profiles, err := uow.ProfileRepository().LockMany(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock profiles: %w", err)
		}
		borrower, ok := profiles[loan.BorrowerID]
		if !ok {
			return NewPreconditionError("Profile not found")
		}

		if err := loans.Close(ctx, loan.ID, models.LoanStatusDefaulted, now); err != nil {
			return loanConflict(err, "Loan not found or not active")
		}

		ref := refID(loan.ID)
		seized := models.MinMoney(loan.CollateralAmount, borrower.FrozenBalance)
		_, err = ApplyBalanceChange(ctx, uow, BalanceChange{
			UserID:        loan.BorrowerID,
			Bucket:        models.BucketFrozen,
			Amount:        -seized,
			Type:          models.TransactionTypeDefault,
			Description:   "Collateral seized (loan defaulted)",
			ReferenceID:   ref,
			ReferenceType: models.ReferenceTypeLoan,
		})
		if err != nil {
			return err
		}

		var writtenOff models.Money
		if loan.LenderID != nil {
			lender, ok := profiles[*loan.LenderID]
			if !ok {
				return NewPreconditionError("Lender profile not found")
			}

			_, err = ApplyBalanceChange(ctx, uow, BalanceChange{
				UserID:        lender.UserID,
				Bucket:        models.BucketVault,
				Amount:        seized,
				Type:          models.TransactionTypeDefaultRecovery,
				Description:   "Collateral recovered from defaulted loan",
				ReferenceID:   ref,
				ReferenceType: models.ReferenceTypeLoan,
			})
			if err != nil {
				return err
			}

			writtenOff = models.MinMoney(loan.Principal, lender.LendingBalance)
			_, err = ApplyBalanceChange(ctx, uow, BalanceChange{
				UserID:        lender.UserID,
				Bucket:        models.BucketLending,
				Amount:        -writtenOff,
				Type:          models.TransactionTypeDefaultRecovery,
				Description:   "Defaulted principal written off",
				ReferenceID:   ref,
				ReferenceType: models.ReferenceTypeLoan,
			})
			if err != nil {
				return err
			}
		}

		if err := RecordIncome(ctx, uow, models.IncomeTypeDefaultAlert, 0,
			fmt.Sprintf("Loan %s defaulted", loan.ID.String()[:8]), ref); err != nil {
			return err
		}

		loan.Status = models.LoanStatusDefaulted
		loan.ClosedAt = &now
		publishLoanState(uow, loan, models.LoanStatusApproved)

		result = &models.DefaultResult{
			Loan:              loan,
			CollateralTaken:   seized,
			LendingWrittenOff: writtenOff,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"loan_id":          loanID,
		"collateral_taken": result.CollateralTaken,
		"written_off":      result.LendingWrittenOff,
	}).Warn("Loan defaulted")

	return result, nil
}

// ReleaseCollateral returns the collateral of an approved loan whose term has elapsed
// but whose grace period has not, and completes the loan
func (s *loanService) ReleaseCollateral(ctx context.Context, loanID uuid.UUID, now time.Time) (*models.Loan, error) {
	var loan *models.Loan
	err := runTransition(ctx, s.uowFactory, "release_collateral", func(uow UnitOfWork) error {
		snapshot, err := LoadSnapshot(ctx, uow.SettingsRepository())
		if err != nil {
			return err
		}
		if snapshot.SystemFrozen {
			return ErrSystemFrozen
		}

		loans := uow.LoanRepository()
		loan, err = loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return fmt.Errorf("failed to get loan: %w", err)
		}
		if loan == nil || loan.Status != models.LoanStatusApproved {
			return NewPreconditionError("Loan not found or not active")
		}
		if loan.CollateralAmount <= 0 {
			return NewPreconditionError("Loan has no collateral")
		}
		if !loan.IsInReleaseWindow(now) {
			return NewPreconditionError("Loan is not in its collateral release window")
		}

		if err := loans.Close(ctx, loan.ID, models.LoanStatusCompleted, now); err != nil {
			return loanConflict(err, "Loan not found or not active")
		}

		if err := s.releaseFrozen(ctx, uow, loan, "Collateral released (term completed)"); err != nil {
			return err
		}

		loan.Status = models.LoanStatusCompleted
		loan.ClosedAt = &now
		publishLoanState(uow, loan, models.LoanStatusApproved)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// AccrueDailyInterest charges the borrower one day of interest at the base rate for
// date, paying the lender their share and booking the rest as income
func (s *loanService) AccrueDailyInterest(ctx context.Context, loanID uuid.UUID, date time.Time) (models.Money, error) {
	date = StartOfDay(date)
	var daily models.Money
	err := runTransition(ctx, s.uowFactory, "daily_interest", func(uow UnitOfWork) error {
		snapshot, err := LoadSnapshot(ctx, uow.SettingsRepository())
		if err != nil {
			return err
		}
		if snapshot.SystemFrozen {
			return ErrSystemFrozen
		}

		loans := uow.LoanRepository()
		loan, err := loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return fmt.Errorf("failed to get loan: %w", err)
		}
		if loan == nil || loan.Status != models.LoanStatusApproved || loan.LenderID == nil {
			return NewPreconditionError("Loan not found or not active")
		}
		if loan.LastAccruedOn != nil && !loan.LastAccruedOn.Before(date) {
			return NewPreconditionError("Interest already accrued for %s", date.Format("2006-01-02"))
		}

		daily = DailyInterest(loan.Principal, snapshot.BaseInterestRate)
		lenderShare := Percent(daily, snapshot.LenderSharePct)
		systemShare := daily - lenderShare

		if _, err := uow.ProfileRepository().LockMany(ctx, []uuid.UUID{loan.BorrowerID, *loan.LenderID}); err != nil {
			return fmt.Errorf("failed to lock profiles: %w", err)
		}

		if err := loans.RecordAccrual(ctx, loan.ID, date, daily); err != nil {
			return loanConflict(err, "Interest already accrued")
		}

		ref := refID(loan.ID)
		metadata := map[string]any{"date": date.Format("2006-01-02")}
		_, err = ApplyBalanceChange(ctx, uow, BalanceChange{
			UserID:        loan.BorrowerID,
			Bucket:        models.BucketVault,
			Amount:        -daily,
			Type:          models.TransactionTypeInterest,
			Description:   "Daily loan interest",
			ReferenceID:   ref,
			ReferenceType: models.ReferenceTypeLoan,
			Metadata:      metadata,
		})
		if err != nil {
			return err
		}

		_, err = ApplyBalanceChange(ctx, uow, BalanceChange{
			UserID:        *loan.LenderID,
			Bucket:        models.BucketVault,
			Amount:        lenderShare,
			Type:          models.TransactionTypeInterest,
			Description:   "Daily lending interest",
			ReferenceID:   ref,
			ReferenceType: models.ReferenceTypeLoan,
			Metadata:      metadata,
		})
		if err != nil {
			return err
		}

		if systemShare > 0 {
			if err := RecordIncome(ctx, uow, models.IncomeTypeInterestSpread, systemShare,
				"Daily interest spread", ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return daily, nil
}

// releaseFrozen moves a loan's collateral from frozen back to vault, never more than is frozen
func (s *loanService) releaseFrozen(ctx context.Context, uow UnitOfWork, loan *models.Loan, description string) error {
	if loan.CollateralAmount <= 0 {
		return nil
	}

	borrower, err := uow.ProfileRepository().GetForUpdate(ctx, loan.BorrowerID)
	if err != nil {
		return fmt.Errorf("failed to lock profile: %w", err)
	}
	if borrower == nil {
		return NewPreconditionError("Profile not found")
	}

	released := models.MinMoney(loan.CollateralAmount, borrower.FrozenBalance)
	return moveBetweenBuckets(ctx, uow, models.BucketFrozen, models.BucketVault, BalanceChange{
		UserID:        loan.BorrowerID,
		Amount:        released,
		Type:          models.TransactionTypeCollateralRelease,
		Description:   description,
		ReferenceID:   refID(loan.ID),
		ReferenceType: models.ReferenceTypeLoan,
	})
}

// ListMarketplaceLoans returns reviewed loans waiting for a lender
func (s *loanService) ListMarketplaceLoans(ctx context.Context, limit int) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		loans, err = uow.LoanRepository().ListMarketplace(ctx, clampLimit(limit))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list marketplace loans: %w", err)
	}
	return loans, nil
}

// ListLoansByBorrower returns every loan a member requested
func (s *loanService) ListLoansByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		loans, err = uow.LoanRepository().ListByBorrower(ctx, borrowerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// ListApprovedLoans returns every funded, open loan
func (s *loanService) ListApprovedLoans(ctx context.Context) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		loans, err = uow.LoanRepository().ListByStatus(ctx, models.LoanStatusApproved)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list approved loans: %w", err)
	}
	return loans, nil
}

func loanConflict(err error, message string) error {
	if errors.Is(err, ErrStatusConflict) {
		return NewPreconditionError("%s", message)
	}
	return fmt.Errorf("failed to update loan: %w", err)
}

func publishLoanState(uow UnitOfWork, loan *models.Loan, from models.LoanStatus) {
	uow.EventBus().Publish(events.LoanStateChangeEvent{
		LoanID:     loan.ID,
		BorrowerID: loan.BorrowerID,
		LenderID:   loan.LenderID,
		OldStatus:  from,
		NewStatus:  loan.Status,
		Reviewed:   loan.ReviewedByGovernor,
		Amount:     loan.Principal,
	})
}
