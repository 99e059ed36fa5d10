package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the type of balance change recorded in the ledger
type TransactionType string

const (
	TransactionTypeDeposit               TransactionType = "deposit"
	TransactionTypeWithdrawal            TransactionType = "withdrawal"
	TransactionTypeWithdrawalFee         TransactionType = "withdrawal_fee"
	TransactionTypeInterest              TransactionType = "interest"
	TransactionTypeReferral              TransactionType = "referral"
	TransactionTypeLoanFunding           TransactionType = "loan_funding"
	TransactionTypeLoanReceived          TransactionType = "loan_received"
	TransactionTypeLoanRepayment         TransactionType = "loan_repayment"
	TransactionTypeLoanRepaymentReceived TransactionType = "loan_repayment_received"
	TransactionTypeCollateralLock        TransactionType = "collateral_lock"
	TransactionTypeCollateralRelease     TransactionType = "collateral_release"
	TransactionTypeDefault               TransactionType = "default"
	TransactionTypeDefaultRecovery       TransactionType = "default_recovery"
	TransactionTypeProfitShare           TransactionType = "profit_share"
)

// ReferenceType represents what type of entity the reference_id refers to
type ReferenceType string

const (
	ReferenceTypeDeposit            ReferenceType = "deposit"
	ReferenceTypeWithdrawal         ReferenceType = "withdrawal"
	ReferenceTypeLoan               ReferenceType = "loan"
	ReferenceTypeProfitDistribution ReferenceType = "profit_distribution"
)

// LedgerEntry is an immutable record of a single balance movement in one bucket
type LedgerEntry struct {
	ID            uuid.UUID       `db:"id"`
	UserID        uuid.UUID       `db:"user_id"`
	Type          TransactionType `db:"type"`
	Bucket        Bucket          `db:"bucket"`
	Amount        Money           `db:"amount"`
	BalanceBefore Money           `db:"balance_before"`
	BalanceAfter  Money           `db:"balance_after"`
	Description   string          `db:"description"`
	ReferenceID   *uuid.UUID      `db:"reference_id"`
	ReferenceType *ReferenceType  `db:"reference_type"`
	Metadata      map[string]any  `db:"metadata"`
	CreatedAt     time.Time       `db:"created_at"`
}

// BucketTotals holds ledger sums per bucket for one member
type BucketTotals struct {
	Vault   Money `json:"vault"`
	Lending Money `json:"lending"`
	Frozen  Money `json:"frozen"`
}

// Reconciliation compares a profile's balances with its ledger
type Reconciliation struct {
	UserID   uuid.UUID    `json:"user_id"`
	Ledger   BucketTotals `json:"ledger"`
	Profile  BucketTotals `json:"profile"`
	Balanced bool         `json:"balanced"`
}
