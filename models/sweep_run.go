package models

import (
	"time"
)

// SweepKind identifies a scheduled sweep
type SweepKind string

const (
	SweepKindDailyInterest     SweepKind = "daily_interest"
	SweepKindDefault           SweepKind = "default"
	SweepKindCollateralRelease SweepKind = "collateral_release"
)

// SweepRun represents one execution of a scheduled sweep
type SweepRun struct {
	ID               int64                  `db:"id"`
	Kind             SweepKind              `db:"kind"`
	RunDate          time.Time              `db:"run_date"`
	LoansProcessed   int                    `db:"loans_processed"`
	LoansFailed      int                    `db:"loans_failed"`
	TotalAmount      Money                  `db:"total_amount"`
	ExecutionSummary map[string]interface{} `db:"execution_summary"`
	CreatedAt        time.Time              `db:"created_at"`
}

// SweepResult is what a sweep reports back to its trigger
type SweepResult struct {
	Kind      SweepKind `json:"kind"`
	Skipped   bool      `json:"skipped"`
	Reason    string    `json:"reason,omitempty"`
	Scanned   int       `json:"scanned"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Amount    Money     `json:"amount"`
}
