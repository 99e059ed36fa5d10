package repository

import (
	"context"
	"testing"

	"cooplend/models"
	"cooplend/repository/testutil"
	"cooplend/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository_AdjustBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewProfileRepository(testDB.DB)
	ctx := context.Background()

	userID := testutil.SeedMember(t, testDB.DB, models.NewMoney(100, 0), 10)

	t.Run("credit", func(t *testing.T) {
		before, after, err := repo.AdjustBalance(ctx, userID, models.BucketVault, models.NewMoney(25, 50))
		require.NoError(t, err)
		assert.Equal(t, models.NewMoney(100, 0), before)
		assert.Equal(t, models.NewMoney(125, 50), after)
	})

	t.Run("debit into another bucket fails when empty", func(t *testing.T) {
		_, _, err := repo.AdjustBalance(ctx, userID, models.BucketFrozen, -1)
		assert.ErrorIs(t, err, service.ErrInsufficientBalance)
	})

	t.Run("overdraft leaves the balance untouched", func(t *testing.T) {
		before, after, err := repo.AdjustBalance(ctx, userID, models.BucketVault, -models.NewMoney(200, 0))
		assert.ErrorIs(t, err, service.ErrInsufficientBalance)
		assert.Equal(t, before, after)

		profile, err := repo.GetByID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, models.NewMoney(125, 50), profile.VaultBalance)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, _, err := repo.AdjustBalance(ctx, uuid.New(), models.BucketVault, 1)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestProfileRepository_LockManyAndTotals(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewProfileRepository(testDB.DB)
	ctx := context.Background()

	a := testutil.SeedMember(t, testDB.DB, models.NewMoney(10, 0), 10)
	b := testutil.SeedMember(t, testDB.DB, models.NewMoney(20, 0), 10)
	testutil.SeedMember(t, testDB.DB, 0, 10)

	err := testDB.DB.WithTransaction(ctx, func(tx pgx.Tx) error {
		locked, err := newProfileRepositoryWithTx(tx).LockMany(ctx, []uuid.UUID{b, a, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, locked, 2)
		assert.Equal(t, models.NewMoney(20, 0), locked[b].VaultBalance)
		return nil
	})
	require.NoError(t, err)

	withVault, err := repo.ListWithPositiveVault(ctx)
	require.NoError(t, err)
	assert.Len(t, withVault, 2)

	totals, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.Members)
	assert.Equal(t, models.NewMoney(30, 0), totals.VaultBalance)
}
