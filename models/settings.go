package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Setting keys recognised by the settings store
const (
	SettingBaseInterestRate  = "base_interest_rate"
	SettingLenderSharePct    = "lender_share_pct"
	SettingDepositFeePct     = "deposit_fee_pct"
	SettingMaxLoanRatio      = "max_loan_ratio"
	SettingCapitalLockDays   = "capital_lock_days"
	SettingMinAccountAgeDays = "min_account_age_days"
	SettingReferralL1Pct     = "referral_l1_pct"
	SettingReferralL2Pct     = "referral_l2_pct"
	SettingReferralL3Pct     = "referral_l3_pct"
	SettingSystemFrozen      = "system_frozen"
	SettingDepositQRCodeURL  = "deposit_qr_code_url"
)

// Setting is a single key/value system parameter
type Setting struct {
	Key       string     `db:"key"`
	Value     string     `db:"value"`
	UpdatedBy *uuid.UUID `db:"updated_by"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// SettingsSnapshot is the typed view of every setting, read once per transition
type SettingsSnapshot struct {
	BaseInterestRate  decimal.Decimal    // annual percent
	LenderSharePct    decimal.Decimal    // percent of interest paid to the lender
	DepositFeePct     decimal.Decimal    // percent of each deposit kept as fee
	MaxLoanRatio      decimal.Decimal    // percent of vault a member may borrow
	CapitalLockDays   int
	MinAccountAgeDays int
	ReferralPct       [3]decimal.Decimal // by level, 1-indexed as [level-1]
	SystemFrozen      bool
	DepositQRCodeURL  string
}

// ReferralRate returns the commission fraction for a level, or zero when out of range
func (s *SettingsSnapshot) ReferralRate(level int) decimal.Decimal {
	if level < 1 || level > len(s.ReferralPct) {
		return decimal.Zero
	}
	return s.ReferralPct[level-1].Div(decimal.NewFromInt(100))
}
