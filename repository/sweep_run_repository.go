package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cooplend/database"
	"cooplend/models"

	"github.com/jackc/pgx/v5"
)

const sweepRunColumns = `
	id, kind, run_date, loans_processed, loans_failed, total_amount,
	execution_summary, created_at`

// SweepRunRepository implements the SweepRunRepository interface
type SweepRunRepository struct {
	q queryable
}

// NewSweepRunRepository creates a new sweep run repository
func NewSweepRunRepository(db *database.DB) *SweepRunRepository {
	return &SweepRunRepository{q: db.Pool}
}

func newSweepRunRepositoryWithTx(tx queryable) *SweepRunRepository {
	return &SweepRunRepository{q: tx}
}

func runDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func scanSweepRun(row pgx.Row) (*models.SweepRun, error) {
	var run models.SweepRun
	var summaryJSON []byte

	err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.RunDate,
		&run.LoansProcessed,
		&run.LoansFailed,
		&run.TotalAmount,
		&summaryJSON,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.ExecutionSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution summary: %w", err)
		}
	}
	return &run, nil
}

// GetByDate returns the run of a kind for the day containing date
func (r *SweepRunRepository) GetByDate(ctx context.Context, kind models.SweepKind, date time.Time) (*models.SweepRun, error) {
	day := runDay(date)
	query := `SELECT ` + sweepRunColumns + ` FROM sweep_runs WHERE kind = $1 AND run_date = $2`

	run, err := scanSweepRun(r.q.QueryRow(ctx, query, kind, day))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s run for date %s: %w", kind, day.Format("2006-01-02"), err)
	}
	return run, nil
}

// Record stores a run. A second run of the same kind on the same day adds its
// counters to the first and merges the summaries.
func (r *SweepRunRepository) Record(ctx context.Context, run *models.SweepRun) error {
	run.RunDate = runDay(run.RunDate)

	summary := run.ExecutionSummary
	if summary == nil {
		summary = map[string]interface{}{}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	query := `
		INSERT INTO sweep_runs
		(kind, run_date, loans_processed, loans_failed, total_amount, execution_summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (kind, run_date) DO UPDATE SET
			loans_processed   = sweep_runs.loans_processed + EXCLUDED.loans_processed,
			loans_failed      = sweep_runs.loans_failed + EXCLUDED.loans_failed,
			total_amount      = sweep_runs.total_amount + EXCLUDED.total_amount,
			execution_summary = sweep_runs.execution_summary || EXCLUDED.execution_summary
		RETURNING ` + sweepRunColumns

	stored, err := scanSweepRun(r.q.QueryRow(ctx, query,
		run.Kind,
		run.RunDate,
		run.LoansProcessed,
		run.LoansFailed,
		run.TotalAmount,
		summaryJSON,
	))
	if err != nil {
		return fmt.Errorf("failed to record %s run for date %s: %w",
			run.Kind, run.RunDate.Format("2006-01-02"), err)
	}

	*run = *stored
	return nil
}

// GetLatest returns the most recent run of a kind
func (r *SweepRunRepository) GetLatest(ctx context.Context, kind models.SweepKind) (*models.SweepRun, error) {
	query := `
		SELECT ` + sweepRunColumns + `
		FROM sweep_runs
		WHERE kind = $1
		ORDER BY run_date DESC
		LIMIT 1`

	run, err := scanSweepRun(r.q.QueryRow(ctx, query, kind))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest %s run: %w", kind, err)
	}
	return run, nil
}
