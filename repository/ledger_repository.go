package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"cooplend/database"
	"cooplend/models"
	"cooplend/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `
	id, user_id, type, bucket, amount, balance_before, balance_after,
	description, reference_id, reference_type, metadata, created_at`

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// Record appends a ledger entry
func (r *LedgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger metadata: %w", err)
	}

	query := `
		INSERT INTO ledger_entries
		(user_id, type, bucket, amount, balance_before, balance_after, description, reference_id, reference_type, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err = r.q.QueryRow(ctx, query,
		entry.UserID,
		entry.Type,
		entry.Bucket,
		entry.Amount,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.Description,
		entry.ReferenceID,
		entry.ReferenceType,
		metadataJSON,
	).Scan(&entry.ID, &entry.CreatedAt)

	// Only the referral payout index can collide
	if database.IsUniqueViolation(err) {
		return service.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to record %s entry for %s: %w", entry.Type, entry.UserID, err)
	}
	return nil
}

// GetByUser returns the newest entries for a member
func (r *LedgerRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger for %s: %w", userID, err)
	}
	return collectLedgerEntries(rows)
}

// GetByReference returns every entry written for one deposit, withdrawal, loan or distribution
func (r *LedgerRepository) GetByReference(ctx context.Context, referenceID uuid.UUID) ([]*models.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE reference_id = $1
		ORDER BY created_at, id`

	rows, err := r.q.Query(ctx, query, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for reference %s: %w", referenceID, err)
	}
	return collectLedgerEntries(rows)
}

// SumByBucket sums a member's ledger per bucket
func (r *LedgerRepository) SumByBucket(ctx context.Context, userID uuid.UUID) (*models.BucketTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE bucket = 'vault'), 0)::BIGINT,
			COALESCE(SUM(amount) FILTER (WHERE bucket = 'lending'), 0)::BIGINT,
			COALESCE(SUM(amount) FILTER (WHERE bucket = 'frozen'), 0)::BIGINT
		FROM ledger_entries
		WHERE user_id = $1`

	var totals models.BucketTotals
	err := r.q.QueryRow(ctx, query, userID).Scan(&totals.Vault, &totals.Lending, &totals.Frozen)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger for %s: %w", userID, err)
	}
	return &totals, nil
}

func collectLedgerEntries(rows pgx.Rows) ([]*models.LedgerEntry, error) {
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		var metadataJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Type,
			&entry.Bucket,
			&entry.Amount,
			&entry.BalanceBefore,
			&entry.BalanceAfter,
			&entry.Description,
			&entry.ReferenceID,
			&entry.ReferenceType,
			&metadataJSON,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal ledger metadata: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}
