package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the capability a member holds in the cooperative
type Role string

const (
	RoleMember   Role = "member"
	RoleGovernor Role = "governor"
)

// Bucket names one of the three balances held on a profile
type Bucket string

const (
	BucketVault   Bucket = "vault"
	BucketLending Bucket = "lending"
	BucketFrozen  Bucket = "frozen"
)

// Profile is a member together with their aggregate balances
type Profile struct {
	UserID         uuid.UUID  `db:"user_id"`
	Email          string     `db:"email"`
	FirstName      string     `db:"first_name"`
	LastName       string     `db:"last_name"`
	VaultBalance   Money      `db:"vault_balance"`
	LendingBalance Money      `db:"lending_balance"`
	FrozenBalance  Money      `db:"frozen_balance"`
	ReferralCode   string     `db:"referral_code"`
	ReferredBy     *uuid.UUID `db:"referred_by"`
	Tier           string     `db:"tier"`
	KYCStatus      string     `db:"kyc_status"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Balance returns the balance held in the given bucket
func (p *Profile) Balance(bucket Bucket) Money {
	switch bucket {
	case BucketLending:
		return p.LendingBalance
	case BucketFrozen:
		return p.FrozenBalance
	default:
		return p.VaultBalance
	}
}

// SetBalance keeps the in-memory copy aligned after a balance update
func (p *Profile) SetBalance(bucket Bucket, amount Money) {
	switch bucket {
	case BucketLending:
		p.LendingBalance = amount
	case BucketFrozen:
		p.FrozenBalance = amount
	default:
		p.VaultBalance = amount
	}
}

// AvailableForCollateral is the vault balance not already backing collateral.
func (p *Profile) AvailableForCollateral() Money {
	return p.VaultBalance - p.FrozenBalance
}

// AccountAge returns how long ago the profile was created
func (p *Profile) AccountAge(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// NewProfile holds the fields needed to register a member
type NewProfile struct {
	UserID       uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	ReferralCode string
	ReferredBy   *uuid.UUID
}

// SystemTotals is an aggregate snapshot across all profiles
type SystemTotals struct {
	Members        int64 `json:"members"`
	VaultBalance   Money `json:"vault_balance"`
	LendingBalance Money `json:"lending_balance"`
	FrozenBalance  Money `json:"frozen_balance"`
	IncomePool     Money `json:"income_pool"`
}
