package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the single-transition lifecycle shared by deposits and withdrawals
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Deposit is a member's claim that funds were sent to the cooperative
type Deposit struct {
	ID         uuid.UUID     `db:"id"`
	UserID     uuid.UUID     `db:"user_id"`
	Amount     Money         `db:"amount"`
	ProofURL   *string       `db:"proof_url"`
	Status     RequestStatus `db:"status"`
	ReviewedBy *uuid.UUID    `db:"reviewed_by"`
	CreatedAt  time.Time     `db:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at"`
}

// DepositApproval is the outcome of approving a deposit
type DepositApproval struct {
	Deposit     *Deposit
	Fee         Money
	Net         Money
	Commissions []*ReferralCommission
}
