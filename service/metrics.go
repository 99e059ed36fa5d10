package service

import (
	"context"
	"sync"
	"time"

	"cooplend/events"
	"cooplend/models"
)

// MetricsRecorder receives measurements from the transition engine
type MetricsRecorder interface {
	RecordTransition(name, outcome string, duration time.Duration)
	RecordBalanceTransaction(transactionType models.TransactionType)
	RecordSweep(result *models.SweepResult)
}

type noopMetrics struct{}

func (noopMetrics) RecordTransition(string, string, time.Duration) {}

func (noopMetrics) RecordBalanceTransaction(models.TransactionType) {}

func (noopMetrics) RecordSweep(*models.SweepResult) {}

var (
	metricsMu       sync.RWMutex
	metricsRecorder MetricsRecorder = noopMetrics{}
)

// SetMetricsRecorder installs the recorder used by every service
func SetMetricsRecorder(r MetricsRecorder) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if r == nil {
		r = noopMetrics{}
	}
	metricsRecorder = r
}

func getMetrics() MetricsRecorder {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return metricsRecorder
}

// CountCommittedLedgerWrites records one ledger write per balance change event.
// The bus only sees events from committed units of work.
func CountCommittedLedgerWrites(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBalanceChange, func(_ context.Context, event events.Event) {
		if change, ok := event.(events.BalanceChangeEvent); ok {
			getMetrics().RecordBalanceTransaction(change.TransactionType)
		}
	})
}
