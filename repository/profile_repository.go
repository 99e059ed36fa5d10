package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"cooplend/database"
	"cooplend/models"
	"cooplend/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const profileColumns = `
	user_id, email, first_name, last_name,
	vault_balance, lending_balance, frozen_balance,
	referral_code, referred_by, tier, kyc_status,
	created_at, updated_at`

// ProfileRepository implements the ProfileRepository interface
type ProfileRepository struct {
	q queryable
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{q: db.Pool}
}

// newProfileRepositoryWithTx creates a new profile repository with a transaction
func newProfileRepositoryWithTx(tx queryable) *ProfileRepository {
	return &ProfileRepository{q: tx}
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.UserID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.VaultBalance,
		&p.LendingBalance,
		&p.FrozenBalance,
		&p.ReferralCode,
		&p.ReferredBy,
		&p.Tier,
		&p.KYCStatus,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a profile by user id
func (r *ProfileRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	profile, err := scanProfile(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}
	return profile, nil
}

// GetForUpdate retrieves a profile and locks its row
func (r *ProfileRepository) GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1 FOR UPDATE`

	profile, err := scanProfile(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile %s: %w", userID, err)
	}
	return profile, nil
}

// LockMany locks several profiles. Rows are locked in user id order so two
// transitions touching the same pair of members cannot deadlock.
func (r *ProfileRepository) LockMany(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Profile, error) {
	ids := make([]uuid.UUID, len(userIDs))
	copy(ids, userIDs)
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE user_id = ANY($1)
		ORDER BY user_id
		FOR UPDATE`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[uuid.UUID]*models.Profile, len(ids))
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles[profile.UserID] = profile
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

// GetByReferralCode resolves a referral code to its owner
func (r *ProfileRepository) GetByReferralCode(ctx context.Context, code string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE referral_code = $1`

	profile, err := scanProfile(r.q.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by referral code: %w", err)
	}
	return profile, nil
}

// Create inserts a zero-balance profile
func (r *ProfileRepository) Create(ctx context.Context, np *models.NewProfile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (user_id, email, first_name, last_name, referral_code, referred_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + profileColumns

	profile, err := scanProfile(r.q.QueryRow(ctx, query,
		np.UserID,
		np.Email,
		np.FirstName,
		np.LastName,
		np.ReferralCode,
		np.ReferredBy,
	))
	if database.IsUniqueViolation(err) {
		return nil, service.ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create profile %s: %w", np.UserID, err)
	}
	return profile, nil
}

func bucketColumn(bucket models.Bucket) (string, error) {
	switch bucket {
	case models.BucketVault:
		return "vault_balance", nil
	case models.BucketLending:
		return "lending_balance", nil
	case models.BucketFrozen:
		return "frozen_balance", nil
	}
	return "", fmt.Errorf("unknown bucket %q", bucket)
}

// AdjustBalance adds delta to one bucket in a single statement. The update only
// applies when the result stays non-negative.
func (r *ProfileRepository) AdjustBalance(ctx context.Context, userID uuid.UUID, bucket models.Bucket, delta models.Money) (models.Money, models.Money, error) {
	column, err := bucketColumn(bucket)
	if err != nil {
		return 0, 0, err
	}

	query := fmt.Sprintf(`
		UPDATE profiles
		SET %[1]s = %[1]s + $2, updated_at = NOW()
		WHERE user_id = $1 AND %[1]s + $2 >= 0
		RETURNING %[1]s - $2, %[1]s`, column)

	var before, after models.Money
	err = r.q.QueryRow(ctx, query, userID, delta).Scan(&before, &after)
	if err == nil {
		return before, after, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("failed to adjust %s for %s: %w", column, userID, err)
	}

	// Either the profile is missing or the bucket would go negative
	err = r.q.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM profiles WHERE user_id = $1`, column), userID).Scan(&before)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, service.ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read %s for %s: %w", column, userID, err)
	}
	return before, before, service.ErrInsufficientBalance
}

// ListWithPositiveVault returns every profile holding vault funds
func (r *ProfileRepository) ListWithPositiveVault(ctx context.Context) ([]*models.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE vault_balance > 0
		ORDER BY user_id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles with vault funds: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

// Totals sums balances across all profiles
func (r *ProfileRepository) Totals(ctx context.Context) (*models.SystemTotals, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(vault_balance), 0)::BIGINT,
			COALESCE(SUM(lending_balance), 0)::BIGINT,
			COALESCE(SUM(frozen_balance), 0)::BIGINT
		FROM profiles`

	var totals models.SystemTotals
	err := r.q.QueryRow(ctx, query).Scan(
		&totals.Members,
		&totals.VaultBalance,
		&totals.LendingBalance,
		&totals.FrozenBalance,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sum profile balances: %w", err)
	}
	return &totals, nil
}
