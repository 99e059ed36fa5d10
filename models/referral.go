package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxReferralLevel is the deepest ancestor that earns commission
const MaxReferralLevel = 3

// ReferralEdge links a member to one of their referral ancestors
type ReferralEdge struct {
	ID             uuid.UUID `db:"id"`
	UserID         uuid.UUID `db:"user_id"` // the ancestor
	ReferredUserID uuid.UUID `db:"referred_user_id"`
	Level          int       `db:"level"`
	CreatedAt      time.Time `db:"created_at"`
}

// ReferralCommission is one payout made from a deposit fee pool
type ReferralCommission struct {
	AncestorID uuid.UUID `json:"ancestor_id"`
	Level      int       `json:"level"`
	Amount     Money     `json:"amount"`
}
