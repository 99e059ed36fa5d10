package gateway

import (
	"time"

	"cooplend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request bodies

type registerRequest struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	ReferralCode string `json:"referral_code"`
}

type depositRequest struct {
	Amount   models.Money `json:"amount"`
	ProofURL string       `json:"proof_url"`
}

type withdrawalRequest struct {
	Amount        models.Money `json:"amount"`
	BankName      string       `json:"bank_name"`
	AccountNumber string       `json:"account_number"`
	AccountHolder string       `json:"account_holder"`
}

type loanRequest struct {
	Principal    models.Money     `json:"principal"`
	Collateral   models.Money     `json:"collateral"`
	DurationDays int              `json:"duration_days"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

type settingRequest struct {
	Value string `json:"value"`
}

type distributeRequest struct {
	Year int `json:"year"`
}

// Responses

type profileResponse struct {
	UserID         uuid.UUID    `json:"user_id"`
	Email          string       `json:"email"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	VaultBalance   models.Money `json:"vault_balance"`
	LendingBalance models.Money `json:"lending_balance"`
	FrozenBalance  models.Money `json:"frozen_balance"`
	ReferralCode   string       `json:"referral_code"`
	ReferredBy     *uuid.UUID   `json:"referred_by,omitempty"`
	Tier           string       `json:"tier"`
	KYCStatus      string       `json:"kyc_status"`
	CreatedAt      time.Time    `json:"created_at"`
}

type ledgerEntryResponse struct {
	ID            uuid.UUID      `json:"id"`
	Type          string         `json:"type"`
	Bucket        string         `json:"bucket"`
	Amount        models.Money   `json:"amount"`
	BalanceBefore models.Money   `json:"balance_before"`
	BalanceAfter  models.Money   `json:"balance_after"`
	Description   string         `json:"description"`
	ReferenceID   *uuid.UUID     `json:"reference_id,omitempty"`
	ReferenceType *string        `json:"reference_type,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type depositResponse struct {
	ID         uuid.UUID    `json:"id"`
	UserID     uuid.UUID    `json:"user_id"`
	Amount     models.Money `json:"amount"`
	ProofURL   *string      `json:"proof_url,omitempty"`
	Status     string       `json:"status"`
	ReviewedBy *uuid.UUID   `json:"reviewed_by,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

type depositReviewResponse struct {
	Deposit     depositResponse              `json:"deposit"`
	Fee         models.Money                 `json:"fee"`
	Net         models.Money                 `json:"net"`
	Commissions []*models.ReferralCommission `json:"commissions"`
}

type withdrawalResponse struct {
	ID              uuid.UUID    `json:"id"`
	UserID          uuid.UUID    `json:"user_id"`
	Amount          models.Money `json:"amount"`
	Fee             models.Money `json:"fee"`
	TotalDeduction  models.Money `json:"total_deduction"`
	BankName        string       `json:"bank_name"`
	AccountNumber   string       `json:"account_number"`
	AccountHolder   string       `json:"account_holder"`
	Status          string       `json:"status"`
	RejectionReason *string      `json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID   `json:"reviewed_by,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

type loanResponse struct {
	ID                 uuid.UUID    `json:"id"`
	BorrowerID         uuid.UUID    `json:"borrower_id"`
	LenderID           *uuid.UUID   `json:"lender_id,omitempty"`
	Principal          models.Money `json:"principal"`
	InterestRate       string       `json:"interest_rate"`
	DurationDays       int          `json:"duration_days"`
	CollateralAmount   models.Money `json:"collateral_amount"`
	Status             string       `json:"status"`
	ReviewedByGovernor bool         `json:"reviewed_by_governor"`
	RejectionReason    *string      `json:"rejection_reason,omitempty"`
	InterestPaid       models.Money `json:"interest_paid"`
	TermEnd            time.Time    `json:"term_end"`
	FundedAt           *time.Time   `json:"funded_at,omitempty"`
	ClosedAt           *time.Time   `json:"closed_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

type repaymentResponse struct {
	Loan               loanResponse          `json:"loan"`
	Quote              models.RepaymentQuote `json:"quote"`
	LenderShare        models.Money          `json:"lender_share"`
	SystemShare        models.Money          `json:"system_share"`
	CollateralReleased models.Money          `json:"collateral_released"`
}

type settingResponse struct {
	Key       string     `json:"key"`
	Value     string     `json:"value"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type distributionResponse struct {
	ID                uuid.UUID    `json:"id"`
	Year              int          `json:"year"`
	TotalProfit       models.Money `json:"total_profit"`
	DistributedAmount models.Money `json:"distributed_amount"`
	Members           int          `json:"members"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Converters

func toProfileResponse(p *models.Profile) profileResponse {
	return profileResponse{
		UserID:         p.UserID,
		Email:          p.Email,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		VaultBalance:   p.VaultBalance,
		LendingBalance: p.LendingBalance,
		FrozenBalance:  p.FrozenBalance,
		ReferralCode:   p.ReferralCode,
		ReferredBy:     p.ReferredBy,
		Tier:           p.Tier,
		KYCStatus:      p.KYCStatus,
		CreatedAt:      p.CreatedAt,
	}
}

func toLedgerResponses(entries []*models.LedgerEntry) []ledgerEntryResponse {
	out := make([]ledgerEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = ledgerEntryResponse{
			ID:            e.ID,
			Type:          string(e.Type),
			Bucket:        string(e.Bucket),
			Amount:        e.Amount,
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			Description:   e.Description,
			ReferenceID:   e.ReferenceID,
			Metadata:      e.Metadata,
			CreatedAt:     e.CreatedAt,
		}
		if e.ReferenceType != nil {
			refType := string(*e.ReferenceType)
			out[i].ReferenceType = &refType
		}
	}
	return out
}

func toDepositResponse(d *models.Deposit) depositResponse {
	return depositResponse{
		ID:         d.ID,
		UserID:     d.UserID,
		Amount:     d.Amount,
		ProofURL:   d.ProofURL,
		Status:     string(d.Status),
		ReviewedBy: d.ReviewedBy,
		CreatedAt:  d.CreatedAt,
	}
}

func toDepositResponses(deposits []*models.Deposit) []depositResponse {
	out := make([]depositResponse, len(deposits))
	for i, d := range deposits {
		out[i] = toDepositResponse(d)
	}
	return out
}

func toWithdrawalResponse(w *models.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:              w.ID,
		UserID:          w.UserID,
		Amount:          w.Amount,
		Fee:             w.Fee,
		TotalDeduction:  w.TotalDeduction(),
		BankName:        w.BankName,
		AccountNumber:   w.AccountNumber,
		AccountHolder:   w.AccountHolder,
		Status:          string(w.Status),
		RejectionReason: w.RejectionReason,
		ReviewedBy:      w.ReviewedBy,
		CreatedAt:       w.CreatedAt,
	}
}

func toWithdrawalResponses(withdrawals []*models.Withdrawal) []withdrawalResponse {
	out := make([]withdrawalResponse, len(withdrawals))
	for i, w := range withdrawals {
		out[i] = toWithdrawalResponse(w)
	}
	return out
}

func toLoanResponse(l *models.Loan) loanResponse {
	return loanResponse{
		ID:                 l.ID,
		BorrowerID:         l.BorrowerID,
		LenderID:           l.LenderID,
		Principal:          l.Principal,
		InterestRate:       l.InterestRate.String(),
		DurationDays:       l.DurationDays,
		CollateralAmount:   l.CollateralAmount,
		Status:             string(l.Status),
		ReviewedByGovernor: l.ReviewedByGovernor,
		RejectionReason:    l.RejectionReason,
		InterestPaid:       l.InterestPaid,
		TermEnd:            l.TermEnd(),
		FundedAt:           l.FundedAt,
		ClosedAt:           l.ClosedAt,
		CreatedAt:          l.CreatedAt,
	}
}

func toLoanResponses(loans []*models.Loan) []loanResponse {
	out := make([]loanResponse, len(loans))
	for i, l := range loans {
		out[i] = toLoanResponse(l)
	}
	return out
}

func toSettingResponse(s *models.Setting) settingResponse {
	return settingResponse{
		Key:       s.Key,
		Value:     s.Value,
		UpdatedBy: s.UpdatedBy,
		UpdatedAt: s.UpdatedAt,
	}
}

func toDistributionResponse(d *models.ProfitDistribution) distributionResponse {
	return distributionResponse{
		ID:                d.ID,
		Year:              d.Year,
		TotalProfit:       d.TotalProfit,
		DistributedAmount: d.DistributedAmount,
		Members:           d.Members,
		CreatedAt:         d.CreatedAt,
	}
}
