package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cooplend/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 16

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeServiceError(w, r, service.NewValidationError("invalid request body: %v", err))
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, service.NewValidationError("invalid id %q", mux.Vars(r)["id"]))
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// caller returns the capability stored by resolveCapability
func caller(r *http.Request) service.Capability {
	c, _ := capabilityFrom(r.Context())
	return c
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := s.services.Members.RegisterMember(r.Context(), service.RegisterMemberRequest{
		UserID:       userID,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileResponse(profile))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.services.Members.GetProfile(r.Context(), caller(r).UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.services.Members.ListLedger(r.Context(), caller(r).UserID, queryLimit(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerResponses(entries))
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Members.Reconcile(r.Context(), caller(r).UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMyLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.services.Loans.ListLoansByBorrower(r.Context(), caller(r).UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponses(loans))
}

func (s *Server) handleDepositInstructions(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.services.Settings.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"qr_code_url":     snapshot.DepositQRCodeURL,
		"deposit_fee_pct": snapshot.DepositFeePct.String(),
		"system_frozen":   snapshot.SystemFrozen,
	})
}

func (s *Server) handleSubmitDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}

	deposit, err := s.services.Deposits.SubmitDeposit(r.Context(), caller(r), req.Amount, req.ProofURL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDepositResponse(deposit))
}

func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	withdrawal, err := s.services.Withdrawals.RequestWithdrawal(r.Context(), caller(r), service.WithdrawalRequest{
		Amount:        req.Amount,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountHolder: req.AccountHolder,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalResponse(withdrawal))
}

func (s *Server) handleRequestLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	loan, err := s.services.Loans.RequestLoan(r.Context(), caller(r), service.LoanRequest{
		Principal:    req.Principal,
		Collateral:   req.Collateral,
		DurationDays: req.DurationDays,
		InterestRate: req.InterestRate,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanResponse(loan))
}

func (s *Server) handleMarketplace(w http.ResponseWriter, r *http.Request) {
	loans, err := s.services.Loans.ListMarketplaceLoans(r.Context(), queryLimit(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponses(loans))
}

func (s *Server) handleFundLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r)
	if !ok {
		return
	}

	loan, err := s.services.Loans.FundLoan(r.Context(), caller(r), loanID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

func (s *Server) handleRepayLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r)
	if !ok {
		return
	}

	result, err := s.services.Loans.RepayLoan(r.Context(), caller(r), loanID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repaymentResponse{
		Loan:               toLoanResponse(result.Loan),
		Quote:              result.Quote,
		LenderShare:        result.LenderShare,
		SystemShare:        result.SystemShare,
		CollateralReleased: result.CollateralReleased,
	})
}

// Governor handlers

func (s *Server) handleListPendingDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := s.services.Deposits.ListPendingDeposits(r.Context(), caller(r), queryLimit(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDepositResponses(deposits))
}

func (s *Server) handleReviewDeposit(w http.ResponseWriter, r *http.Request) {
	depositID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	approval, err := s.services.Deposits.ReviewDeposit(r.Context(), caller(r), depositID, req.Approve)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depositReviewResponse{
		Deposit:     toDepositResponse(approval.Deposit),
		Fee:         approval.Fee,
		Net:         approval.Net,
		Commissions: approval.Commissions,
	})
}

func (s *Server) handleListPendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := s.services.Withdrawals.ListPendingWithdrawals(r.Context(), caller(r), queryLimit(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalResponses(withdrawals))
}

func (s *Server) handleReviewWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawalID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	withdrawal, err := s.services.Withdrawals.ReviewWithdrawal(r.Context(), caller(r), withdrawalID, req.Approve, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalResponse(withdrawal))
}

func (s *Server) handleListApprovedLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.services.Loans.ListApprovedLoans(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponses(loans))
}

func (s *Server) handleReviewLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	loan, err := s.services.Loans.ReviewLoan(r.Context(), caller(r), loanID, req.Approve, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.services.Settings.GetAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]settingResponse, len(settings))
	for i, setting := range settings {
		out[i] = toSettingResponse(setting)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	setting, err := s.services.Settings.UpdateSetting(r.Context(), caller(r), mux.Vars(r)["key"], req.Value)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingResponse(setting))
}

func (s *Server) handleDistributeProfits(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	distribution, err := s.services.Profits.DistributeProfits(r.Context(), caller(r), req.Year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionResponse(distribution))
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.services.Members.SystemTotals(r.Context(), caller(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// Sweep triggers

func (s *Server) handleDailyInterest(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Sweeps.RunDailyInterest(r.Context(), s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCheckDefaults(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Sweeps.RunDefaultSweep(r.Context(), s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReleaseCollateral(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Sweeps.RunCollateralRelease(r.Context(), s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
