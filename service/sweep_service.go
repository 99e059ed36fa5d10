package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cooplend/models"

	log "github.com/sirupsen/logrus"
)

// sweepService implements the SweepService interface
type sweepService struct {
	uowFactory UnitOfWorkFactory
	loans      LoanService
	settings   SettingsService
}

// NewSweepService creates a new sweep service
func NewSweepService(uowFactory UnitOfWorkFactory, loans LoanService, settings SettingsService) SweepService {
	return &sweepService{
		uowFactory: uowFactory,
		loans:      loans,
		settings:   settings,
	}
}

// loanSweep describes which approved loans a sweep touches and what it does to each
type loanSweep struct {
	kind        models.SweepKind
	skipFrozen  bool
	oncePerDay  bool
	eligible    func(loan *models.Loan) bool
	apply       func(ctx context.Context, loan *models.Loan) (models.Money, error)
	alreadyDone func(err error) bool
}

// RunDailyInterest charges one day of interest on every approved loan
func (s *sweepService) RunDailyInterest(ctx context.Context, now time.Time) (*models.SweepResult, error) {
	date := StartOfDay(now)
	return s.run(ctx, now, loanSweep{
		kind:       models.SweepKindDailyInterest,
		skipFrozen: true,
		oncePerDay: true,
		eligible:   func(*models.Loan) bool { return true },
		apply: func(ctx context.Context, loan *models.Loan) (models.Money, error) {
			return s.loans.AccrueDailyInterest(ctx, loan.ID, date)
		},
		alreadyDone: func(err error) bool { return IsKind(err, KindPreconditionFailed) },
	})
}

// RunDefaultSweep defaults every approved loan past its term and grace period
func (s *sweepService) RunDefaultSweep(ctx context.Context, now time.Time) (*models.SweepResult, error) {
	return s.run(ctx, now, loanSweep{
		kind:     models.SweepKindDefault,
		eligible: func(loan *models.Loan) bool { return loan.IsPastDefaultDeadline(now) },
		apply: func(ctx context.Context, loan *models.Loan) (models.Money, error) {
			result, err := s.loans.DefaultLoan(ctx, loan.ID, now)
			if err != nil {
				return 0, err
			}
			return result.CollateralTaken, nil
		},
	})
}

// RunCollateralRelease completes approved loans inside their release window
func (s *sweepService) RunCollateralRelease(ctx context.Context, now time.Time) (*models.SweepResult, error) {
	return s.run(ctx, now, loanSweep{
		kind:       models.SweepKindCollateralRelease,
		skipFrozen: true,
		eligible: func(loan *models.Loan) bool {
			return loan.CollateralAmount > 0 && loan.IsInReleaseWindow(now)
		},
		apply: func(ctx context.Context, loan *models.Loan) (models.Money, error) {
			released, err := s.loans.ReleaseCollateral(ctx, loan.ID, now)
			if err != nil {
				return 0, err
			}
			return released.CollateralAmount, nil
		},
	})
}

// RunAll runs the default sweep first so a loan past its grace period is never
// released, then the release sweep, then daily interest
func (s *sweepService) RunAll(ctx context.Context, now time.Time) ([]*models.SweepResult, error) {
	var results []*models.SweepResult
	var errs []error

	for _, run := range []func(context.Context, time.Time) (*models.SweepResult, error){
		s.RunDefaultSweep,
		s.RunCollateralRelease,
		s.RunDailyInterest,
	} {
		result, err := run(ctx, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

func (s *sweepService) run(ctx context.Context, now time.Time, sweep loanSweep) (*models.SweepResult, error) {
	result := &models.SweepResult{Kind: sweep.kind}
	logger := log.WithFields(log.Fields{
		"sweep": sweep.kind,
		"date":  StartOfDay(now).Format("2006-01-02"),
	})

	if sweep.skipFrozen {
		frozen, err := s.settings.IsFrozen(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read freeze flag: %w", err)
		}
		if frozen {
			result.Skipped = true
			result.Reason = "System is frozen"
			logger.Info("Sweep skipped - system frozen")
			getMetrics().RecordSweep(result)
			return result, nil
		}
	}

	if sweep.oncePerDay {
		previous, err := s.previousRun(ctx, sweep.kind, now)
		if err != nil {
			return nil, err
		}
		if previous != nil {
			result.Skipped = true
			result.Reason = "Already ran today"
			logger.Info("Sweep skipped - already ran today")
			getMetrics().RecordSweep(result)
			return result, nil
		}
	}

	loans, err := s.loans.ListApprovedLoans(ctx)
	if err != nil {
		return nil, err
	}

	failures := make(map[string]interface{})
	for _, loan := range loans {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !sweep.eligible(loan) {
			continue
		}
		result.Scanned++

		amount, err := sweep.apply(ctx, loan)
		if err != nil {
			if sweep.alreadyDone != nil && sweep.alreadyDone(err) {
				logger.WithField("loan_id", loan.ID).Debug("Loan already handled")
				continue
			}
			result.Failed++
			failures[loan.ID.String()] = err.Error()
			logger.WithFields(log.Fields{
				"loan_id": loan.ID,
				"error":   err,
			}).Warn("Sweep failed for loan")
			continue
		}
		result.Processed++
		result.Amount += amount
	}

	run := &models.SweepRun{
		Kind:           sweep.kind,
		RunDate:        StartOfDay(now),
		LoansProcessed: result.Processed,
		LoansFailed:    result.Failed,
		TotalAmount:    result.Amount,
		ExecutionSummary: map[string]interface{}{
			"scanned":  result.Scanned,
			"failures": failures,
			"ran_at":   now.UTC().Format(time.RFC3339),
		},
	}
	err = runTransition(ctx, s.uowFactory, "record_sweep", func(uow UnitOfWork) error {
		return uow.SweepRunRepository().Record(ctx, run)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record %s sweep: %w", sweep.kind, err)
	}

	getMetrics().RecordSweep(result)
	logger.WithFields(log.Fields{
		"scanned":   result.Scanned,
		"processed": result.Processed,
		"failed":    result.Failed,
		"amount":    result.Amount,
	}).Info("Sweep completed")

	return result, nil
}

func (s *sweepService) previousRun(ctx context.Context, kind models.SweepKind, now time.Time) (*models.SweepRun, error) {
	var run *models.SweepRun
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		run, err = uow.SweepRunRepository().GetByDate(ctx, kind, StartOfDay(now))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check previous %s sweep: %w", kind, err)
	}
	return run, nil
}
