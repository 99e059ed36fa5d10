package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cooplend/config"
	"cooplend/models"
	"cooplend/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)

type testHarness struct {
	cfg      *config.Config
	server   *Server
	verifier *TokenVerifier
	members  *mockMemberService
	deposits *mockDepositService
	loans    *mockLoanService
	settings *mockSettingsService
	sweeps   *mockSweepService
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		cfg:      config.NewTestConfig(),
		members:  new(mockMemberService),
		deposits: new(mockDepositService),
		loans:    new(mockLoanService),
		settings: new(mockSettingsService),
		sweeps:   new(mockSweepService),
	}
	h.verifier = NewTokenVerifier(h.cfg.JWTSecret, "")
	h.server = NewServer(h.cfg, Services{
		Members:  h.members,
		Deposits: h.deposits,
		Loans:    h.loans,
		Settings: h.settings,
		Sweeps:   h.sweeps,
	}, h.verifier, nil, nil)
	h.server.now = func() time.Time { return fixedNow }
	return h
}

func (h *testHarness) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := h.verifier.Sign(userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (h *testHarness) asMember(t *testing.T) (uuid.UUID, string) {
	userID := uuid.New()
	h.members.On("ResolveCapability", mock.Anything, userID).Return(service.MemberCapability(userID), nil)
	return userID, h.token(t, userID)
}

func (h *testHarness) asGovernor(t *testing.T) (uuid.UUID, string) {
	userID := uuid.New()
	h.members.On("ResolveCapability", mock.Anything, userID).Return(service.GovernorCapability(userID), nil)
	return userID, h.token(t, userID)
}

func (h *testHarness) do(method, path, token string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body))
	return body
}

func TestHealthz(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestAuthentication(t *testing.T) {
	h := newTestHarness(t)

	t.Run("missing token", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/v1/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		forged, err := NewTokenVerifier("some-other-secret", "").Sign(uuid.New(), time.Hour)
		require.NoError(t, err)

		rec := h.do(http.MethodGet, "/v1/me", forged, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	h.members.AssertNotCalled(t, "ResolveCapability", mock.Anything, mock.Anything)
}

func TestGovernorRoutes_RoleComesFromStorage(t *testing.T) {
	h := newTestHarness(t)
	_, token := h.asMember(t)

	rec := h.do(http.MethodGet, "/v1/governor/totals", token, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	h.members.AssertNotCalled(t, "SystemTotals", mock.Anything, mock.Anything)
}

func TestRegister_UsesTokenSubject(t *testing.T) {
	h := newTestHarness(t)
	userID := uuid.New()
	h.members.On("RegisterMember", mock.Anything, service.RegisterMemberRequest{
		UserID:       userID,
		Email:        "ana@example.com",
		FirstName:    "Ana",
		ReferralCode: "ABC-DEFG",
	}).Return(&models.Profile{UserID: userID, Email: "ana@example.com", ReferralCode: "XYZ-2345"}, nil)

	rec := h.do(http.MethodPost, "/v1/register", h.token(t, userID),
		`{"email":"ana@example.com","first_name":"Ana","referral_code":"ABC-DEFG"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, userID.String(), body["user_id"])
	assert.Equal(t, "0.00", body["vault_balance"])
	h.members.AssertNotCalled(t, "ResolveCapability", mock.Anything, mock.Anything)
}

func TestMe(t *testing.T) {
	h := newTestHarness(t)
	userID, token := h.asMember(t)
	h.members.On("GetProfile", mock.Anything, userID).Return(&models.Profile{
		UserID:         userID,
		VaultBalance:   models.NewMoney(4990, 14),
		LendingBalance: models.NewMoney(2000, 0),
	}, nil)

	rec := h.do(http.MethodGet, "/v1/me", token, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "4990.14", body["vault_balance"])
	assert.Equal(t, "2000.00", body["lending_balance"])
}

func TestErrorMapping(t *testing.T) {
	loanID := uuid.New()

	tests := []struct {
		name      string
		err       error
		status    int
		message   string
		shortfall string
	}{
		{"validation", service.NewValidationError("amount must be positive"), http.StatusBadRequest, "amount must be positive", ""},
		{"precondition", service.NewPreconditionError("Loan is not available for funding"), http.StatusConflict, "Loan is not available for funding", ""},
		{"insufficient funds", service.NewInsufficientFundsError("Insufficient vault balance", models.NewMoney(15, 0)), http.StatusUnprocessableEntity, "Insufficient vault balance", "15.00"},
		{"frozen", service.ErrSystemFrozen, http.StatusLocked, service.ErrSystemFrozen.Message, ""},
		{"forbidden", service.NewForbiddenError("cannot fund your own loan"), http.StatusForbidden, "cannot fund your own loan", ""},
		{"internal", errors.New("connection reset by peer"), http.StatusInternalServerError, internalErrorMessage, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			userID, token := h.asMember(t)
			h.loans.On("FundLoan", mock.Anything, service.MemberCapability(userID), loanID).Return(nil, tt.err)

			rec := h.do(http.MethodPost, "/v1/loans/"+loanID.String()+"/fund", token, "")

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.message, body["error"])
			if tt.shortfall != "" {
				assert.Equal(t, tt.shortfall, body["shortfall"])
			} else {
				assert.NotContains(t, body, "shortfall")
			}
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestRequestValidation(t *testing.T) {
	h := newTestHarness(t)
	_, token := h.asMember(t)

	t.Run("malformed id", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/v1/loans/not-a-uuid/repay", token, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/v1/deposits", token, `{"amount":"10.00","user_id":"someone-else"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too many decimals", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/v1/deposits", token, `{"amount":"10.001"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("amount beyond range", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/v1/deposits", token, `{"amount":"184467440737095521.16"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation", decode(t, rec)["kind"])
	})

	h.deposits.AssertNotCalled(t, "SubmitDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	h.loans.AssertNotCalled(t, "RepayLoan", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitDeposit(t *testing.T) {
	h := newTestHarness(t)
	userID, token := h.asMember(t)
	proof := "https://cdn.example.com/proof.png"
	h.deposits.On("SubmitDeposit", mock.Anything, service.MemberCapability(userID), models.NewMoney(500, 0), proof).
		Return(&models.Deposit{ID: uuid.New(), UserID: userID, Amount: models.NewMoney(500, 0), ProofURL: &proof, Status: models.RequestStatusPending}, nil)

	rec := h.do(http.MethodPost, "/v1/deposits", token, `{"amount":"500.00","proof_url":"`+proof+`"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "500.00", body["amount"])
	assert.Equal(t, "pending", body["status"])
}

func TestReviewDeposit(t *testing.T) {
	h := newTestHarness(t)
	governorID, token := h.asGovernor(t)
	depositID := uuid.New()
	h.deposits.On("ReviewDeposit", mock.Anything, service.GovernorCapability(governorID), depositID, true).
		Return(&models.DepositApproval{
			Deposit: &models.Deposit{ID: depositID, Amount: models.NewMoney(500, 0), Status: models.RequestStatusApproved},
			Fee:     models.NewMoney(10, 0),
			Net:     models.NewMoney(490, 0),
			Commissions: []*models.ReferralCommission{
				{AncestorID: uuid.New(), Level: 1, Amount: models.NewMoney(0, 50)},
			},
		}, nil)

	rec := h.do(http.MethodPost, "/v1/governor/deposits/"+depositID.String()+"/review", token, `{"approve":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "10.00", body["fee"])
	assert.Equal(t, "490.00", body["net"])
	require.Len(t, body["commissions"], 1)
}

func TestRateLimit_MemberBudget(t *testing.T) {
	h := newTestHarness(t)
	userID, token := h.asMember(t)
	h.members.On("GetProfile", mock.Anything, userID).Return(&models.Profile{UserID: userID}, nil)

	for i := 0; i < h.cfg.MemberRateLimit; i++ {
		rec := h.do(http.MethodGet, "/v1/me", token, "")
		require.Equal(t, http.StatusOK, rec.Code, "call %d", i+1)
	}

	rec := h.do(http.MethodGet, "/v1/me", token, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(service.KindRateLimited), decode(t, rec)["kind"])

	// Budgets are per endpoint
	h.members.On("ListLedger", mock.Anything, userID, 0).Return([]*models.LedgerEntry{}, nil)
	rec = h.do(http.MethodGet, "/v1/me/ledger", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCronEndpoints(t *testing.T) {
	h := newTestHarness(t)

	t.Run("requires the cron secret", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/v1/cron/daily-interest", "wrong-secret", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		_, memberToken := h.asMember(t)
		rec = h.do(http.MethodPost, "/v1/cron/check-defaults", memberToken, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("runs the sweep at the current time", func(t *testing.T) {
		h.sweeps.On("RunDailyInterest", mock.Anything, fixedNow).Return(&models.SweepResult{
			Kind:      models.SweepKindDailyInterest,
			Scanned:   2,
			Processed: 2,
			Amount:    models.NewMoney(0, 66),
		}, nil).Once()

		rec := h.do(http.MethodPost, "/v1/cron/daily-interest", h.cfg.CronSecret, "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "0.66", body["amount"])
		assert.Equal(t, float64(2), body["processed"])
	})

	h.sweeps.AssertNotCalled(t, "RunDefaultSweep", mock.Anything, mock.Anything)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHarness(t)

	h.do(http.MethodGet, "/healthz", "", "")
	rec := h.do(http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cooplend_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func (h *testHarness) requestWithAuthorization(header string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}
