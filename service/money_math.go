package service

import (
	"math"
	"time"

	"cooplend/models"

	"github.com/shopspring/decimal"
)

const daysPerYear = 365

var hundred = decimal.NewFromInt(100)

// Percent returns pct percent of amount rounded half-up to minor units
func Percent(amount models.Money, pct decimal.Decimal) models.Money {
	return models.MoneyFromDecimal(amount.Decimal().Mul(pct).Div(hundred))
}

// PercentFloor returns pct percent of amount rounded down to minor units
func PercentFloor(amount models.Money, pct decimal.Decimal) models.Money {
	return models.MoneyFromDecimalFloor(amount.Decimal().Mul(pct).Div(hundred))
}

// SimpleInterest is principal * rate/100 * days/365, rounded half-up.
// 1000.00 at 12% for 30 days is 9.86.
func SimpleInterest(principal models.Money, annualRatePct decimal.Decimal, days int) models.Money {
	return models.MoneyFromDecimal(
		principal.Decimal().
			Mul(annualRatePct).
			Mul(decimal.NewFromInt(int64(days))).
			Div(hundred.Mul(decimal.NewFromInt(daysPerYear))),
	)
}

// DailyInterest is one day of simple interest
func DailyInterest(principal models.Money, annualRatePct decimal.Decimal) models.Money {
	return SimpleInterest(principal, annualRatePct, 1)
}

// DaysElapsed counts started days between from and now, with a minimum of one
func DaysElapsed(from, now time.Time) int {
	days := int(math.Ceil(now.Sub(from).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// QuoteRepayment computes what closing a loan at now costs the borrower
func QuoteRepayment(loan *models.Loan, now time.Time) models.RepaymentQuote {
	days := DaysElapsed(loan.CreatedAt, now)
	interest := SimpleInterest(loan.Principal, loan.InterestRate, days)
	due := models.MaxMoney(0, interest-loan.InterestPaid)
	return models.RepaymentQuote{
		DaysElapsed:  days,
		Interest:     interest,
		InterestPaid: loan.InterestPaid,
		InterestDue:  due,
		TotalOwed:    loan.Principal + due,
	}
}

// StartOfDay normalizes t to midnight UTC
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
