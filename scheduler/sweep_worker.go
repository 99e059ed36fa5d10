package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cooplend/service"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// SweepWorker runs the loan sweeps on a cron schedule
type SweepWorker struct {
	sweeps  service.SweepService
	spec    string
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

// NewSweepWorker creates a worker for a cron spec with a seconds field
func NewSweepWorker(sweeps service.SweepService, spec string) *SweepWorker {
	return &SweepWorker{
		sweeps:  sweeps,
		spec:    spec,
		timeout: 30 * time.Minute,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the sweeps and returns a function that stops the schedule
// and waits for a run in progress to finish
func (w *SweepWorker) Start(ctx context.Context) (func(), error) {
	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(w.spec, func() { w.RunOnce(ctx) }); err != nil {
		return nil, fmt.Errorf("failed to schedule sweeps %q: %w", w.spec, err)
	}

	c.Start()
	log.WithField("schedule", w.spec).Info("Sweep worker started")

	return func() {
		<-c.Stop().Done()
		log.Info("Sweep worker stopped")
	}, nil
}

// RunOnce runs every sweep once. Overlapping calls are dropped.
func (w *SweepWorker) RunOnce(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		log.Warn("Previous sweep run still in progress, skipping")
		return
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	started := w.now()
	results, err := w.sweeps.RunAll(runCtx, started)
	if err != nil {
		log.WithError(err).Error("Sweep run failed")
	}

	for _, result := range results {
		log.WithFields(log.Fields{
			"kind":      result.Kind,
			"skipped":   result.Skipped,
			"reason":    result.Reason,
			"processed": result.Processed,
			"failed":    result.Failed,
			"amount":    result.Amount.String(),
		}).Info("Sweep completed")
	}

	log.WithField("duration", time.Since(started)).Debug("Sweep run finished")
}
