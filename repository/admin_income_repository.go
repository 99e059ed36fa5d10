package repository

import (
	"context"
	"fmt"

	"cooplend/database"
	"cooplend/models"
)

// incomePoolLockKey is the advisory lock guarding reads of the pool balance
const incomePoolLockKey int64 = 0x636f6f70

// AdminIncomeRepository implements the AdminIncomeRepository interface
type AdminIncomeRepository struct {
	q queryable
}

// NewAdminIncomeRepository creates a new admin income repository
func NewAdminIncomeRepository(db *database.DB) *AdminIncomeRepository {
	return &AdminIncomeRepository{q: db.Pool}
}

func newAdminIncomeRepositoryWithTx(tx queryable) *AdminIncomeRepository {
	return &AdminIncomeRepository{q: tx}
}

// Record appends an entry to the income ledger
func (r *AdminIncomeRepository) Record(ctx context.Context, entry *models.AdminIncomeEntry) error {
	query := `
		INSERT INTO admin_income_ledger (type, amount, description, reference_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		entry.Type,
		entry.Amount,
		entry.Description,
		entry.ReferenceID,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record %s income: %w", entry.Type, err)
	}
	return nil
}

// Balance is the sum of every income entry
func (r *AdminIncomeRepository) Balance(ctx context.Context) (models.Money, error) {
	var balance models.Money
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM admin_income_ledger`).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to sum income ledger: %w", err)
	}
	return balance, nil
}

// LockPool takes a transaction-scoped advisory lock. It is released on commit or rollback.
func (r *AdminIncomeRepository) LockPool(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, incomePoolLockKey); err != nil {
		return fmt.Errorf("failed to lock income pool: %w", err)
	}
	return nil
}
