package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cooplend/models"
)

// Capability is what an authenticated caller may do. It is resolved from
// stored roles, never from anything the caller sends.
type Capability struct {
	UserID uuid.UUID
	Role   models.Role
}

// MemberCapability returns the capability of an ordinary member
func MemberCapability(userID uuid.UUID) Capability {
	return Capability{UserID: userID, Role: models.RoleMember}
}

// GovernorCapability returns the capability of a governor
func GovernorCapability(userID uuid.UUID) Capability {
	return Capability{UserID: userID, Role: models.RoleGovernor}
}

// IsGovernor reports whether the caller may review requests and change settings
func (c Capability) IsGovernor() bool {
	return c.Role == models.RoleGovernor
}

func requireGovernor(caller Capability) error {
	if !caller.IsGovernor() {
		return NewForbiddenError("governor role required")
	}
	return nil
}

// RegisterMemberRequest holds the fields for a new member
type RegisterMemberRequest struct {
	UserID       uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	ReferralCode string // code of the inviting member, optional
}

// WithdrawalRequest holds the fields a member submits to withdraw
type WithdrawalRequest struct {
	Amount        models.Money
	BankName      string
	AccountNumber string
	AccountHolder string
}

// LoanRequest holds the fields a borrower submits
type LoanRequest struct {
	Principal    models.Money
	Collateral   models.Money
	DurationDays int
	InterestRate *decimal.Decimal // annual percent, defaults to the base rate
}
