package cmd

import (
	"context"
	"fmt"
	"time"

	"cooplend/config"
	"cooplend/database"
	"cooplend/events"
	"cooplend/gateway"
	"cooplend/infrastructure"
	"cooplend/infrastructure/observability"
	"cooplend/models"
	"cooplend/repository"
	"cooplend/scheduler"
	"cooplend/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the ledger service
func Run(ctx context.Context) error {
	log.Info("Starting cooplend ledger...")

	// Load configuration
	cfg := config.Get()
	ConfigureLogging(cfg)

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnectionWithOptions(ctx, cfg.GetDatabaseURL(), database.PoolOptions{
		MaxConns: cfg.DatabaseMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("Closing database connection...")
		db.Close()
	}()
	log.Info("Database connection established successfully")

	// Initialize metrics
	log.Info("Initializing metrics...")
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics := observability.GetMetrics()
	service.SetMetricsRecorder(metrics)
	log.Info("Metrics initialized successfully")

	// Initialize event bus
	log.Info("Initializing event bus...")
	eventBus := events.NewBus()
	service.CountCommittedLedgerWrites(eventBus)
	log.Info("Event bus initialized successfully")

	// Forward committed domain events to NATS
	var natsClient *infrastructure.NATSClient
	if cfg.NATSEnabled() {
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		mapper := infrastructure.NewEventSubjectMapper()
		if err := infrastructure.EnsureDomainEventStream(natsClient, mapper); err != nil {
			natsClient.Close()
			return fmt.Errorf("failed to ensure event stream: %w", err)
		}
		infrastructure.NewNATSEventPublisher(natsClient, mapper, metrics).Attach(eventBus)
		log.Info("NATS event publisher attached")
	} else {
		log.Info("NATS_SERVERS not set, domain events stay in process")
	}

	// Initialize unit of work factory
	log.Info("Initializing unit of work factory...")
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	log.Info("Unit of work factory initialized successfully")

	// Initialize services
	log.Info("Initializing services...")
	settingsService := service.NewSettingsService(uowFactory)
	referralService := service.NewReferralService(uowFactory)
	loanService := service.NewLoanService(uowFactory)
	services := gateway.Services{
		Members:     service.NewMemberService(uowFactory),
		Deposits:    service.NewDepositService(uowFactory, referralService),
		Withdrawals: service.NewWithdrawalService(uowFactory),
		Loans:       loanService,
		Settings:    settingsService,
		Profits:     service.NewProfitService(uowFactory),
		Sweeps:      service.NewSweepService(uowFactory, loanService, settingsService),
	}
	log.Info("Services initialized successfully")

	// Rate limiter backend
	var limiter gateway.Limiter
	if cfg.RedisURL != "" {
		log.Info("Connecting to Redis rate limiter...")
		redisLimiter, err := gateway.NewRedisLimiter(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
		log.Info("Redis rate limiter ready")
	} else {
		limiter = gateway.NewMemoryLimiter()
	}

	// Start sweep scheduler
	var stopSweeps func()
	if cfg.SweepCron != "" {
		log.Info("Starting sweep scheduler...")
		stopSweeps, err = scheduler.NewSweepWorker(services.Sweeps, cfg.SweepCron).Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start sweep scheduler: %w", err)
		}
	} else {
		log.Info("SWEEP_CRON empty, sweeps run only through the cron endpoints")
	}

	// Start HTTP gateway
	server := gateway.NewServer(cfg, services, gateway.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer), limiter, db.Ping)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	log.WithField("environment", cfg.Environment).Info("Ledger is running")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("HTTP gateway stopped")
		}
	}

	// Cleanup resources
	log.Info("Shutting down ledger...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP gateway")
	}

	if stopSweeps != nil {
		stopSweeps()
	}

	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}

	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}

	log.Info("Shutdown completed")
	return nil
}

// GrantGovernor gives a member the governor role
func GrantGovernor(ctx context.Context, userID string) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	uow := repository.NewUnitOfWorkFactory(db, events.NewBus()).Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	profile, err := uow.ProfileRepository().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return fmt.Errorf("no member with id %s", id)
	}

	if err := uow.RoleRepository().Grant(ctx, id, models.RoleGovernor); err != nil {
		return fmt.Errorf("failed to grant governor role: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id": id,
		"email":   profile.Email,
	}).Info("Governor role granted")
	return nil
}
