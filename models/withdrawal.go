package models

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal is a member's request to move vault funds to a bank account
type Withdrawal struct {
	ID              uuid.UUID     `db:"id"`
	UserID          uuid.UUID     `db:"user_id"`
	Amount          Money         `db:"amount"`
	Fee             Money         `db:"fee"`
	BankName        string        `db:"bank_name"`
	AccountNumber   string        `db:"account_number"`
	AccountHolder   string        `db:"account_holder"`
	Status          RequestStatus `db:"status"`
	RejectionReason *string       `db:"rejection_reason"`
	ReviewedBy      *uuid.UUID    `db:"reviewed_by"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// TotalDeduction is the amount leaving the vault on approval
func (w *Withdrawal) TotalDeduction() Money {
	return w.Amount + w.Fee
}
