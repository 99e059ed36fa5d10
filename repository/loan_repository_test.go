package repository

import (
	"context"
	"testing"
	"time"

	"cooplend/models"
	"cooplend/repository/testutil"
	"cooplend/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanRepository_StateTransitions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewLoanRepository(testDB.DB)
	ctx := context.Background()

	borrower := testutil.SeedMember(t, testDB.DB, models.NewMoney(1000, 0), 10)
	lender := testutil.SeedMember(t, testDB.DB, models.NewMoney(1000, 0), 10)
	governor := testutil.SeedGovernor(t, testDB.DB)

	loan := &models.Loan{
		BorrowerID:   borrower,
		Principal:    models.NewMoney(100, 0),
		InterestRate: decimal.RequireFromString("12.5"),
		DurationDays: 14,
	}
	require.NoError(t, repo.Create(ctx, loan))
	assert.NotEqual(t, uuid.Nil, loan.ID)

	stored, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, stored.InterestRate.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, models.LoanStatusPending, stored.Status)
	assert.False(t, stored.IsMarketplaceListed())

	t.Run("unreviewed loans cannot be funded", func(t *testing.T) {
		err := repo.Fund(ctx, loan.ID, lender, time.Now())
		assert.ErrorIs(t, err, service.ErrStatusConflict)
	})

	require.NoError(t, repo.MarkReviewed(ctx, loan.ID, governor))
	assert.ErrorIs(t, repo.MarkReviewed(ctx, loan.ID, governor), service.ErrStatusConflict)

	listed, err := repo.ListMarketplace(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, loan.ID, listed[0].ID)

	require.NoError(t, repo.Fund(ctx, loan.ID, lender, time.Now()))
	assert.ErrorIs(t, repo.Fund(ctx, loan.ID, governor, time.Now()), service.ErrStatusConflict)

	t.Run("accrual is recorded once per day", func(t *testing.T) {
		day := time.Date(2026, 5, 4, 13, 0, 0, 0, time.UTC)
		require.NoError(t, repo.RecordAccrual(ctx, loan.ID, day, 34))
		assert.ErrorIs(t, repo.RecordAccrual(ctx, loan.ID, day.Add(2*time.Hour), 34), service.ErrStatusConflict)
		require.NoError(t, repo.RecordAccrual(ctx, loan.ID, day.AddDate(0, 0, 1), 34))

		stored, err := repo.GetByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Money(68), stored.InterestPaid)
		require.NotNil(t, stored.LastAccruedOn)
		assert.Equal(t, "2026-05-05", stored.LastAccruedOn.Format("2006-01-02"))
	})

	require.NoError(t, repo.Close(ctx, loan.ID, models.LoanStatusCompleted, time.Now()))
	assert.ErrorIs(t, repo.Close(ctx, loan.ID, models.LoanStatusDefaulted, time.Now()), service.ErrStatusConflict)
	assert.Error(t, repo.Close(ctx, loan.ID, models.LoanStatusPending, time.Now()))

	approved, err := repo.ListByStatus(ctx, models.LoanStatusApproved)
	require.NoError(t, err)
	assert.Empty(t, approved)

	mine, err := repo.ListByBorrower(ctx, borrower)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.LoanStatusCompleted, mine[0].Status)
	assert.NotNil(t, mine[0].ClosedAt)
}

func TestLoanRepository_Reject(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewLoanRepository(testDB.DB)
	ctx := context.Background()

	borrower := testutil.SeedMember(t, testDB.DB, models.NewMoney(1000, 0), 10)
	governor := testutil.SeedGovernor(t, testDB.DB)

	loan := &models.Loan{
		BorrowerID:   borrower,
		Principal:    models.NewMoney(50, 0),
		InterestRate: decimal.NewFromInt(12),
		DurationDays: 7,
	}
	require.NoError(t, repo.Create(ctx, loan))

	reason := "Insufficient history"
	require.NoError(t, repo.Reject(ctx, loan.ID, governor, &reason))
	assert.ErrorIs(t, repo.Reject(ctx, loan.ID, governor, nil), service.ErrStatusConflict)

	stored, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, reason, *stored.RejectionReason)
}
