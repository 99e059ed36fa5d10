package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cooplend/config"
	"cooplend/service"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Services are the transitions and read models the gateway exposes
type Services struct {
	Members     service.MemberService
	Deposits    service.DepositService
	Withdrawals service.WithdrawalService
	Loans       service.LoanService
	Settings    service.SettingsService
	Profits     service.ProfitService
	Sweeps      service.SweepService
}

// HealthCheck reports whether the server's dependencies are reachable
type HealthCheck func(ctx context.Context) error

// Server is the HTTP/JSON front of the ledger
type Server struct {
	services          Services
	verifier          *TokenVerifier
	limiter           Limiter
	health            HealthCheck
	cronSecret        string
	memberRateLimit   int
	governorRateLimit int
	shutdownTimeout   time.Duration
	metrics           *httpMetrics
	router            *mux.Router
	httpServer        *http.Server
	now               func() time.Time
}

// NewServer wires the routes. A nil limiter falls back to the in-process limiter.
func NewServer(cfg *config.Config, services Services, verifier *TokenVerifier, limiter Limiter, health HealthCheck) *Server {
	if limiter == nil {
		limiter = NewMemoryLimiter()
	}
	if health == nil {
		health = func(context.Context) error { return nil }
	}

	s := &Server{
		services:          services,
		verifier:          verifier,
		limiter:           limiter,
		health:            health,
		cronSecret:        cfg.CronSecret,
		memberRateLimit:   cfg.MemberRateLimit,
		governorRateLimit: cfg.GovernorRateLimit,
		shutdownTimeout:   cfg.ShutdownTimeout,
		metrics:           newHTTPMetrics(),
		now:               func() time.Time { return time.Now().UTC() },
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)

	// Sweep triggers
	cron := r.PathPrefix("/v1/cron").Subrouter()
	cron.Use(s.requireCronSecret)
	cron.HandleFunc("/daily-interest", s.handleDailyInterest).Methods(http.MethodPost)
	cron.HandleFunc("/check-defaults", s.handleCheckDefaults).Methods(http.MethodPost)
	cron.HandleFunc("/release-collateral", s.handleReleaseCollateral).Methods(http.MethodPost)

	// Registration has no capability yet
	r.Handle("/v1/register", s.authenticate(s.rateLimit(s.memberRateLimit)(http.HandlerFunc(s.handleRegister)))).
		Methods(http.MethodPost)

	governor := r.PathPrefix("/v1/governor").Subrouter()
	governor.Use(s.authenticate, s.rateLimit(s.governorRateLimit), s.resolveCapability, s.requireGovernor)
	governor.HandleFunc("/deposits", s.handleListPendingDeposits).Methods(http.MethodGet)
	governor.HandleFunc("/deposits/{id}/review", s.handleReviewDeposit).Methods(http.MethodPost)
	governor.HandleFunc("/withdrawals", s.handleListPendingWithdrawals).Methods(http.MethodGet)
	governor.HandleFunc("/withdrawals/{id}/review", s.handleReviewWithdrawal).Methods(http.MethodPost)
	governor.HandleFunc("/loans", s.handleListApprovedLoans).Methods(http.MethodGet)
	governor.HandleFunc("/loans/{id}/review", s.handleReviewLoan).Methods(http.MethodPost)
	governor.HandleFunc("/settings", s.handleListSettings).Methods(http.MethodGet)
	governor.HandleFunc("/settings/{key}", s.handleUpdateSetting).Methods(http.MethodPut)
	governor.HandleFunc("/profits/distribute", s.handleDistributeProfits).Methods(http.MethodPost)
	governor.HandleFunc("/totals", s.handleTotals).Methods(http.MethodGet)

	member := r.PathPrefix("/v1").Subrouter()
	member.Use(s.authenticate, s.rateLimit(s.memberRateLimit), s.resolveCapability)
	member.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	member.HandleFunc("/me/ledger", s.handleLedger).Methods(http.MethodGet)
	member.HandleFunc("/me/reconcile", s.handleReconcile).Methods(http.MethodGet)
	member.HandleFunc("/me/loans", s.handleMyLoans).Methods(http.MethodGet)
	member.HandleFunc("/deposits/instructions", s.handleDepositInstructions).Methods(http.MethodGet)
	member.HandleFunc("/deposits", s.handleSubmitDeposit).Methods(http.MethodPost)
	member.HandleFunc("/withdrawals", s.handleRequestWithdrawal).Methods(http.MethodPost)
	member.HandleFunc("/loans", s.handleRequestLoan).Methods(http.MethodPost)
	member.HandleFunc("/loans/marketplace", s.handleMarketplace).Methods(http.MethodGet)
	member.HandleFunc("/loans/{id}/fund", s.handleFundLoan).Methods(http.MethodPost)
	member.HandleFunc("/loans/{id}/repay", s.handleRepayLoan).Methods(http.MethodPost)

	return r
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	log.WithField("addr", s.httpServer.Addr).Info("HTTP gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.health(ctx); err != nil {
		log.WithError(err).Warn("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
