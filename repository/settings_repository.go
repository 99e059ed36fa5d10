package repository

import (
	"context"
	"errors"
	"fmt"

	"cooplend/database"
	"cooplend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SettingsRepository implements the SettingsRepository interface
type SettingsRepository struct {
	q queryable
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{q: db.Pool}
}

func newSettingsRepositoryWithTx(tx queryable) *SettingsRepository {
	return &SettingsRepository{q: tx}
}

// GetAll returns every stored setting
func (r *SettingsRepository) GetAll(ctx context.Context) ([]*models.Setting, error) {
	rows, err := r.q.Query(ctx, `SELECT key, value, updated_by, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	defer rows.Close()

	var settings []*models.Setting
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}
	return settings, nil
}

// Get returns one setting, or nil when the key was never stored
func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var s models.Setting
	err := r.q.QueryRow(ctx,
		`SELECT key, value, updated_by, updated_at FROM settings WHERE key = $1`, key,
	).Scan(&s.Key, &s.Value, &s.UpdatedBy, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &s, nil
}

// Upsert stores a setting value
func (r *SettingsRepository) Upsert(ctx context.Context, key, value string, updatedBy uuid.UUID) error {
	query := `
		INSERT INTO settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = NOW()`

	if _, err := r.q.Exec(ctx, query, key, value, updatedBy); err != nil {
		return fmt.Errorf("failed to update setting %s: %w", key, err)
	}
	return nil
}
