package repository

import (
	"context"
	"errors"
	"fmt"

	"cooplend/database"
	"cooplend/models"
	"cooplend/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const depositColumns = `id, user_id, amount, proof_url, status, reviewed_by, created_at, updated_at`

// DepositRepository implements the DepositRepository interface
type DepositRepository struct {
	q queryable
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(db *database.DB) *DepositRepository {
	return &DepositRepository{q: db.Pool}
}

func newDepositRepositoryWithTx(tx queryable) *DepositRepository {
	return &DepositRepository{q: tx}
}

func scanDeposit(row pgx.Row) (*models.Deposit, error) {
	var d models.Deposit
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Amount,
		&d.ProofURL,
		&d.Status,
		&d.ReviewedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a pending deposit
func (r *DepositRepository) Create(ctx context.Context, deposit *models.Deposit) error {
	query := `
		INSERT INTO deposits (user_id, amount, proof_url, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	if deposit.Status == "" {
		deposit.Status = models.RequestStatusPending
	}
	err := r.q.QueryRow(ctx, query,
		deposit.UserID,
		deposit.Amount,
		deposit.ProofURL,
		deposit.Status,
	).Scan(&deposit.ID, &deposit.CreatedAt, &deposit.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deposit for %s: %w", deposit.UserID, err)
	}
	return nil
}

// GetByID retrieves a deposit
func (r *DepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	deposit, err := scanDeposit(r.q.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit %s: %w", id, err)
	}
	return deposit, nil
}

// GetForUpdate retrieves a deposit and locks its row
func (r *DepositRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	deposit, err := scanDeposit(r.q.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock deposit %s: %w", id, err)
	}
	return deposit, nil
}

// TransitionStatus moves a deposit out of from. Zero affected rows means
// another reviewer got there first.
func (r *DepositRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, reviewedBy uuid.UUID) error {
	query := `
		UPDATE deposits
		SET status = $3, reviewed_by = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	tag, err := r.q.Exec(ctx, query, id, from, to, reviewedBy)
	if err != nil {
		return fmt.Errorf("failed to move deposit %s to %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrStatusConflict
	}
	return nil
}

// ListByStatus returns deposits in a status, oldest first
func (r *DepositRepository) ListByStatus(ctx context.Context, status models.RequestStatus, limit int) ([]*models.Deposit, error) {
	query := `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.q.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s deposits: %w", status, err)
	}
	defer rows.Close()

	var deposits []*models.Deposit
	for rows.Next() {
		deposit, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, deposit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}
	return deposits, nil
}
