package repository

import (
	"context"
	"errors"
	"fmt"

	"cooplend/database"
	"cooplend/events"
	"cooplend/service"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const notStarted = "unit of work not started - call Begin() first"

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	profileRepo      service.ProfileRepository
	roleRepo         service.RoleRepository
	ledgerRepo       service.LedgerRepository
	incomeRepo       service.AdminIncomeRepository
	depositRepo      service.DepositRepository
	withdrawalRepo   service.WithdrawalRepository
	loanRepo         service.LoanRepository
	settingsRepo     service.SettingsRepository
	referralRepo     service.ReferralRepository
	sweepRunRepo     service.SweepRunRepository
	distributionRepo service.ProfitDistributionRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.profileRepo = newProfileRepositoryWithTx(tx)
	u.roleRepo = newRoleRepositoryWithTx(tx)
	u.ledgerRepo = newLedgerRepositoryWithTx(tx)
	u.incomeRepo = newAdminIncomeRepositoryWithTx(tx)
	u.depositRepo = newDepositRepositoryWithTx(tx)
	u.withdrawalRepo = newWithdrawalRepositoryWithTx(tx)
	u.loanRepo = newLoanRepositoryWithTx(tx)
	u.settingsRepo = newSettingsRepositoryWithTx(tx)
	u.referralRepo = newReferralRepositoryWithTx(tx)
	u.sweepRunRepo = newSweepRunRepositoryWithTx(tx)
	u.distributionRepo = newProfitDistributionRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and then releases the events it raised
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// The commit stands even if delivery fails
	if u.transactionalBus != nil {
		if err := u.transactionalBus.Flush(u.ctx); err != nil {
			log.WithError(err).Error("Failed to flush events after commit")
		}
	}

	return nil
}

// Rollback rolls back the transaction. It is safe to call after Commit.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// ProfileRepository returns the profile repository for this unit of work
func (u *unitOfWork) ProfileRepository() service.ProfileRepository {
	if u.profileRepo == nil {
		panic(notStarted)
	}
	return u.profileRepo
}

// RoleRepository returns the role repository for this unit of work
func (u *unitOfWork) RoleRepository() service.RoleRepository {
	if u.roleRepo == nil {
		panic(notStarted)
	}
	return u.roleRepo
}

// LedgerRepository returns the ledger repository for this unit of work
func (u *unitOfWork) LedgerRepository() service.LedgerRepository {
	if u.ledgerRepo == nil {
		panic(notStarted)
	}
	return u.ledgerRepo
}

// AdminIncomeRepository returns the income ledger repository for this unit of work
func (u *unitOfWork) AdminIncomeRepository() service.AdminIncomeRepository {
	if u.incomeRepo == nil {
		panic(notStarted)
	}
	return u.incomeRepo
}

// DepositRepository returns the deposit repository for this unit of work
func (u *unitOfWork) DepositRepository() service.DepositRepository {
	if u.depositRepo == nil {
		panic(notStarted)
	}
	return u.depositRepo
}

// WithdrawalRepository returns the withdrawal repository for this unit of work
func (u *unitOfWork) WithdrawalRepository() service.WithdrawalRepository {
	if u.withdrawalRepo == nil {
		panic(notStarted)
	}
	return u.withdrawalRepo
}

// LoanRepository returns the loan repository for this unit of work
func (u *unitOfWork) LoanRepository() service.LoanRepository {
	if u.loanRepo == nil {
		panic(notStarted)
	}
	return u.loanRepo
}

// SettingsRepository returns the settings repository for this unit of work
func (u *unitOfWork) SettingsRepository() service.SettingsRepository {
	if u.settingsRepo == nil {
		panic(notStarted)
	}
	return u.settingsRepo
}

// ReferralRepository returns the referral repository for this unit of work
func (u *unitOfWork) ReferralRepository() service.ReferralRepository {
	if u.referralRepo == nil {
		panic(notStarted)
	}
	return u.referralRepo
}

// SweepRunRepository returns the sweep run repository for this unit of work
func (u *unitOfWork) SweepRunRepository() service.SweepRunRepository {
	if u.sweepRunRepo == nil {
		panic(notStarted)
	}
	return u.sweepRunRepo
}

// ProfitDistributionRepository returns the distribution repository for this unit of work
func (u *unitOfWork) ProfitDistributionRepository() service.ProfitDistributionRepository {
	if u.distributionRepo == nil {
		panic(notStarted)
	}
	return u.distributionRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic(notStarted)
	}
	return u.transactionalBus
}
