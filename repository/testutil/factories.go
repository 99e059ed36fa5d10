package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"cooplend/database"
	"cooplend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// NewTestProfile builds a profile request with a unique referral code
func NewTestProfile(referredBy *uuid.UUID) *models.NewProfile {
	id := uuid.New()
	return &models.NewProfile{
		UserID:       id,
		Email:        fmt.Sprintf("%s@example.com", id.String()[:8]),
		FirstName:    "Test",
		LastName:     "Member",
		ReferralCode: strings.ToUpper("T" + id.String()[:7]),
		ReferredBy:   referredBy,
	}
}

// SeedMember inserts a member whose vault already holds vault, backdated by
// ageDays. A matching deposit ledger entry keeps the member reconciled.
func SeedMember(t *testing.T, db *database.DB, vault models.Money, ageDays int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	p := NewTestProfile(nil)
	createdAt := time.Now().UTC().Add(-time.Duration(ageDays) * 24 * time.Hour)

	_, err := db.Exec(ctx, `
		INSERT INTO profiles (user_id, email, first_name, last_name, referral_code, vault_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.UserID, p.Email, p.FirstName, p.LastName, p.ReferralCode, vault, createdAt)
	require.NoError(t, err)

	_, err = db.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, 'member')`, p.UserID)
	require.NoError(t, err)

	if vault > 0 {
		_, err = db.Exec(ctx, `
			INSERT INTO ledger_entries (user_id, type, bucket, amount, balance_before, balance_after, description)
			VALUES ($1, 'deposit', 'vault', $2, 0, $2, 'Seed deposit')`,
			p.UserID, vault)
		require.NoError(t, err)
	}
	return p.UserID
}

// SeedGovernor inserts a member holding the governor role
func SeedGovernor(t *testing.T, db *database.DB) uuid.UUID {
	t.Helper()
	id := SeedMember(t, db, 0, 30)
	_, err := db.Exec(context.Background(), `INSERT INTO user_roles (user_id, role) VALUES ($1, 'governor')`, id)
	require.NoError(t, err)
	return id
}

// NewTestSweepRun builds a run for the day containing date
func NewTestSweepRun(kind models.SweepKind, date time.Time) *models.SweepRun {
	return NewTestSweepRunWithDetails(kind, date, 3, 1, 9900)
}

// NewTestSweepRunWithDetails builds a run with explicit counters
func NewTestSweepRunWithDetails(kind models.SweepKind, date time.Time, processed, failed int, amount models.Money) *models.SweepRun {
	return &models.SweepRun{
		Kind:           kind,
		RunDate:        date,
		LoansProcessed: processed,
		LoansFailed:    failed,
		TotalAmount:    amount,
		ExecutionSummary: map[string]interface{}{
			"scanned": processed + failed,
		},
	}
}

// BackdateLoan moves a loan's creation time into the past
func BackdateLoan(t *testing.T, db *database.DB, loanID uuid.UUID, days int) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`UPDATE loans SET created_at = created_at - make_interval(days => $2) WHERE id = $1`,
		loanID, days)
	require.NoError(t, err)
}
