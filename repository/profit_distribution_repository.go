package repository

import (
	"context"
	"errors"
	"fmt"

	"cooplend/database"
	"cooplend/models"
	"cooplend/service"

	"github.com/jackc/pgx/v5"
)

// ProfitDistributionRepository implements the ProfitDistributionRepository interface
type ProfitDistributionRepository struct {
	q queryable
}

// NewProfitDistributionRepository creates a new profit distribution repository
func NewProfitDistributionRepository(db *database.DB) *ProfitDistributionRepository {
	return &ProfitDistributionRepository{q: db.Pool}
}

func newProfitDistributionRepositoryWithTx(tx queryable) *ProfitDistributionRepository {
	return &ProfitDistributionRepository{q: tx}
}

// GetByYear returns the distribution for a fiscal year, or nil
func (r *ProfitDistributionRepository) GetByYear(ctx context.Context, year int) (*models.ProfitDistribution, error) {
	query := `
		SELECT id, year, total_profit, distributed_amount, members, created_by, created_at
		FROM profit_distributions
		WHERE year = $1`

	var d models.ProfitDistribution
	err := r.q.QueryRow(ctx, query, year).Scan(
		&d.ID,
		&d.Year,
		&d.TotalProfit,
		&d.DistributedAmount,
		&d.Members,
		&d.CreatedBy,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profit distribution for %d: %w", year, err)
	}
	return &d, nil
}

// Create records a distribution. The id is chosen by the caller so ledger
// entries can reference it before the row exists.
func (r *ProfitDistributionRepository) Create(ctx context.Context, d *models.ProfitDistribution) error {
	query := `
		INSERT INTO profit_distributions (id, year, total_profit, distributed_amount, members, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.q.QueryRow(ctx, query,
		d.ID,
		d.Year,
		d.TotalProfit,
		d.DistributedAmount,
		d.Members,
		d.CreatedBy,
	).Scan(&d.CreatedAt)
	if database.IsUniqueViolation(err) {
		return service.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to record profit distribution for %d: %w", d.Year, err)
	}
	return nil
}
