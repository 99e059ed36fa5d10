package service

import (
	"context"
	"errors"
	"fmt"

	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
)

// BalanceChange describes one movement of one bucket on one profile
type BalanceChange struct {
	UserID        uuid.UUID
	Bucket        models.Bucket
	Amount        models.Money
	Type          models.TransactionType
	Description   string
	ReferenceID   *uuid.UUID
	ReferenceType models.ReferenceType
	Metadata      map[string]any
}

// ApplyBalanceChange moves a bucket balance and records the matching ledger entry.
// This is the single entry point for all balance changes in the system. A change
// of zero is skipped and returns a nil entry.
func ApplyBalanceChange(ctx context.Context, uow UnitOfWork, change BalanceChange) (*models.LedgerEntry, error) {
	if change.Amount == 0 {
		return nil, nil
	}

	before, after, err := uow.ProfileRepository().AdjustBalance(ctx, change.UserID, change.Bucket, change.Amount)
	if errors.Is(err, ErrInsufficientBalance) {
		return nil, NewInsufficientFundsError(
			fmt.Sprintf("Insufficient %s balance", change.Bucket),
			-(before + change.Amount),
		)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, NewPreconditionError("profile %s not found", change.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust %s balance: %w", change.Bucket, err)
	}

	entry := &models.LedgerEntry{
		UserID:        change.UserID,
		Type:          change.Type,
		Bucket:        change.Bucket,
		Amount:        change.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   change.Description,
		ReferenceID:   change.ReferenceID,
		Metadata:      change.Metadata,
	}
	if change.ReferenceType != "" {
		refType := change.ReferenceType
		entry.ReferenceType = &refType
	}

	if err := RecordBalanceChange(ctx, uow, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordBalanceChange writes a ledger entry and emits the balance change event.
// The event is buffered by the unit of work and only delivered after commit.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, entry *models.LedgerEntry) error {
	if err := uow.LedgerRepository().Record(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return NewPreconditionError("ledger entry already recorded for %s", entry.Type)
		}
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          entry.UserID,
		Bucket:          entry.Bucket,
		OldBalance:      entry.BalanceBefore,
		NewBalance:      entry.BalanceAfter,
		TransactionType: entry.Type,
		ChangeAmount:    entry.Amount,
		ReferenceID:     entry.ReferenceID,
	})
	return nil
}

// moveBetweenBuckets debits one bucket and credits another on the same profile
func moveBetweenBuckets(ctx context.Context, uow UnitOfWork, from, to models.Bucket, change BalanceChange) error {
	debit := change
	debit.Bucket = from
	debit.Amount = -change.Amount
	if _, err := ApplyBalanceChange(ctx, uow, debit); err != nil {
		return err
	}

	credit := change
	credit.Bucket = to
	if _, err := ApplyBalanceChange(ctx, uow, credit); err != nil {
		return err
	}
	return nil
}

// RecordIncome appends an entry to the system income ledger
func RecordIncome(ctx context.Context, uow UnitOfWork, incomeType models.IncomeType, amount models.Money, description string, referenceID *uuid.UUID) error {
	entry := &models.AdminIncomeEntry{
		Type:        incomeType,
		Amount:      amount,
		Description: description,
		ReferenceID: referenceID,
	}
	if err := uow.AdminIncomeRepository().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record %s income: %w", incomeType, err)
	}
	return nil
}

func refID(id uuid.UUID) *uuid.UUID {
	return &id
}
