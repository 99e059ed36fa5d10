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

const withdrawalColumns = `
	id, user_id, amount, fee, bank_name, account_number, account_holder,
	status, rejection_reason, reviewed_by, created_at, updated_at`

// WithdrawalRepository implements the WithdrawalRepository interface
type WithdrawalRepository struct {
	q queryable
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

func newWithdrawalRepositoryWithTx(tx queryable) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.Fee,
		&w.BankName,
		&w.AccountNumber,
		&w.AccountHolder,
		&w.Status,
		&w.RejectionReason,
		&w.ReviewedBy,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts a pending withdrawal
func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (user_id, amount, fee, bank_name, account_number, account_holder, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	if withdrawal.Status == "" {
		withdrawal.Status = models.RequestStatusPending
	}
	err := r.q.QueryRow(ctx, query,
		withdrawal.UserID,
		withdrawal.Amount,
		withdrawal.Fee,
		withdrawal.BankName,
		withdrawal.AccountNumber,
		withdrawal.AccountHolder,
		withdrawal.Status,
	).Scan(&withdrawal.ID, &withdrawal.CreatedAt, &withdrawal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal for %s: %w", withdrawal.UserID, err)
	}
	return nil
}

// GetByID retrieves a withdrawal
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	withdrawal, err := scanWithdrawal(r.q.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %s: %w", id, err)
	}
	return withdrawal, nil
}

// GetForUpdate retrieves a withdrawal and locks its row
func (r *WithdrawalRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	withdrawal, err := scanWithdrawal(r.q.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock withdrawal %s: %w", id, err)
	}
	return withdrawal, nil
}

// TransitionStatus moves a withdrawal out of from, recording the reviewer and
// an optional rejection reason
func (r *WithdrawalRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, reviewedBy uuid.UUID, reason *string) error {
	query := `
		UPDATE withdrawals
		SET status = $3, reviewed_by = $4, rejection_reason = $5, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	tag, err := r.q.Exec(ctx, query, id, from, to, reviewedBy, reason)
	if err != nil {
		return fmt.Errorf("failed to move withdrawal %s to %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrStatusConflict
	}
	return nil
}

// ListByStatus returns withdrawals in a status, oldest first
func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status models.RequestStatus, limit int) ([]*models.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.q.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s withdrawals: %w", status, err)
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		withdrawal, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, withdrawal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}
	return withdrawals, nil
}
