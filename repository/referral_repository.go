package repository

import (
	"context"
	"fmt"

	"cooplend/database"
	"cooplend/models"
	"cooplend/service"

	"github.com/google/uuid"
)

// ReferralRepository implements the ReferralRepository interface
type ReferralRepository struct {
	q queryable
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(db *database.DB) *ReferralRepository {
	return &ReferralRepository{q: db.Pool}
}

func newReferralRepositoryWithTx(tx queryable) *ReferralRepository {
	return &ReferralRepository{q: tx}
}

// Create links a member to an ancestor at a level
func (r *ReferralRepository) Create(ctx context.Context, edge *models.ReferralEdge) error {
	query := `
		INSERT INTO referrals (user_id, referred_user_id, level)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query, edge.UserID, edge.ReferredUserID, edge.Level).Scan(&edge.ID, &edge.CreatedAt)
	if database.IsUniqueViolation(err) {
		return service.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to link %s to ancestor %s: %w", edge.ReferredUserID, edge.UserID, err)
	}
	return nil
}

// GetAncestors returns the edges pointing at a member ordered by level
func (r *ReferralRepository) GetAncestors(ctx context.Context, referredUserID uuid.UUID) ([]*models.ReferralEdge, error) {
	query := `
		SELECT id, user_id, referred_user_id, level, created_at
		FROM referrals
		WHERE referred_user_id = $1
		ORDER BY level`

	rows, err := r.q.Query(ctx, query, referredUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ancestors of %s: %w", referredUserID, err)
	}
	defer rows.Close()

	var edges []*models.ReferralEdge
	for rows.Next() {
		var e models.ReferralEdge
		if err := rows.Scan(&e.ID, &e.UserID, &e.ReferredUserID, &e.Level, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referrals: %w", err)
	}
	return edges, nil
}
