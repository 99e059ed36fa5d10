package repository

import (
	"context"
	"fmt"

	"cooplend/database"
	"cooplend/models"

	"github.com/google/uuid"
)

// RoleRepository implements the RoleRepository interface
type RoleRepository struct {
	q queryable
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *database.DB) *RoleRepository {
	return &RoleRepository{q: db.Pool}
}

func newRoleRepositoryWithTx(tx queryable) *RoleRepository {
	return &RoleRepository{q: tx}
}

// GetRoles returns every role held by a member
func (r *RoleRepository) GetRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	rows, err := r.q.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles for %s: %w", userID, err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}
	return roles, nil
}

// Grant gives a member a role. Granting a role twice is a no-op.
func (r *RoleRepository) Grant(ctx context.Context, userID uuid.UUID, role models.Role) error {
	query := `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING`

	if _, err := r.q.Exec(ctx, query, userID, role); err != nil {
		return fmt.Errorf("failed to grant %s to %s: %w", role, userID, err)
	}
	return nil
}
