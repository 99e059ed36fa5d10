package models

import (
	"time"

	"github.com/google/uuid"
)

// Bounds for the fiscal year of a profit distribution
const (
	MinProfitYear = 2020
	MaxProfitYear = 2100
)

// ProfitDistribution records one annual distribution of the income pool
type ProfitDistribution struct {
	ID                uuid.UUID `db:"id"`
	Year              int       `db:"year"`
	TotalProfit       Money     `db:"total_profit"`
	DistributedAmount Money     `db:"distributed_amount"`
	Members           int       `db:"members"`
	CreatedBy         uuid.UUID `db:"created_by"`
	CreatedAt         time.Time `db:"created_at"`
}
