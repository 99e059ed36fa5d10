package repository

import (
	"context"
	"testing"

	"cooplend/models"
	"cooplend/repository/testutil"
	"cooplend/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepository_ReferralPayoutOncePerDeposit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewLedgerRepository(testDB.DB)
	ctx := context.Background()

	ancestor := testutil.SeedMember(t, testDB.DB, 0, 10)
	depositID := uuid.New()
	refType := models.ReferenceTypeDeposit

	entry := func() *models.LedgerEntry {
		return &models.LedgerEntry{
			UserID:        ancestor,
			Type:          models.TransactionTypeReferral,
			Bucket:        models.BucketVault,
			Amount:        50,
			BalanceBefore: 0,
			BalanceAfter:  50,
			Description:   "Level 1 referral commission",
			ReferenceID:   &depositID,
			ReferenceType: &refType,
			Metadata:      map[string]any{"level": 1},
		}
	}

	first := entry()
	require.NoError(t, repo.Record(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)

	assert.ErrorIs(t, repo.Record(ctx, entry()), service.ErrDuplicate)

	entries, err := repo.GetByReference(ctx, depositID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(1), entries[0].Metadata["level"])

	totals, err := repo.SumByBucket(ctx, ancestor)
	require.NoError(t, err)
	assert.Equal(t, models.Money(50), totals.Vault)
	assert.Zero(t, totals.Frozen)
}

func TestLedgerRepository_AppendOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	userID := testutil.SeedMember(t, testDB.DB, models.NewMoney(10, 0), 10)

	_, err := testDB.DB.Exec(ctx, `UPDATE ledger_entries SET amount = 0 WHERE user_id = $1`, userID)
	assert.ErrorContains(t, err, "append-only")

	_, err = testDB.DB.Exec(ctx, `DELETE FROM ledger_entries WHERE user_id = $1`, userID)
	assert.ErrorContains(t, err, "append-only")

	entries, err := NewLedgerRepository(testDB.DB).GetByUser(ctx, userID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
