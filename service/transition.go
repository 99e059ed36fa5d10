package service

import (
	"context"
	"fmt"
	"time"

	"cooplend/config"
	"cooplend/database"

	log "github.com/sirupsen/logrus"
)

// runTransition executes fn inside its own unit of work and commits it.
// Serialization failures and deadlocks are retried with a fresh unit of work.
func runTransition(ctx context.Context, factory UnitOfWorkFactory, name string, fn func(uow UnitOfWork) error) error {
	attempts := config.Get().TransitionRetries
	if attempts < 1 {
		attempts = 1
	}

	start := time.Now()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = runOnce(ctx, factory, fn)
		if err == nil || !database.IsRetryable(err) {
			break
		}
		log.WithFields(log.Fields{
			"transition": name,
			"attempt":    attempt,
			"error":      err,
		}).Warn("Transition conflicted with a concurrent transaction")
	}

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == string(KindInternal) {
			log.WithFields(log.Fields{
				"transition": name,
				"error":      err,
			}).Error("Transition failed")
		}
	}
	getMetrics().RecordTransition(name, outcome, time.Since(start))

	return err
}

func runOnce(ctx context.Context, factory UnitOfWorkFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// readOnly runs fn in a unit of work that is always rolled back
func readOnly(ctx context.Context, factory UnitOfWorkFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return fn(uow)
}
