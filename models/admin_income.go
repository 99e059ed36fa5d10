package models

import (
	"time"

	"github.com/google/uuid"
)

// IncomeType classifies an entry in the system's income ledger
type IncomeType string

const (
	IncomeTypeDepositFee         IncomeType = "deposit_fee"
	IncomeTypeWithdrawalFee      IncomeType = "withdrawal_fee"
	IncomeTypeInterestSpread     IncomeType = "interest_spread"
	IncomeTypeDefaultAlert       IncomeType = "default_alert"
	IncomeTypeReferralPayout     IncomeType = "referral_payout"
	IncomeTypeProfitDistribution IncomeType = "profit_distribution"
)

// AdminIncomeEntry is an append-only movement of the system income pool
type AdminIncomeEntry struct {
	ID          uuid.UUID  `db:"id"`
	Type        IncomeType `db:"type"`
	Amount      Money      `db:"amount"`
	Description string     `db:"description"`
	ReferenceID *uuid.UUID `db:"reference_id"`
	CreatedAt   time.Time  `db:"created_at"`
}
