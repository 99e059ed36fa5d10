package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// MinorUnitsPerUnit is the number of minor units (centavos) in one currency unit.
const MinorUnitsPerUnit = 100

// Money is an amount of currency held as an integer count of minor units.
// Balance arithmetic never goes through floating point.
type Money int64

// NewMoney builds a Money value from whole units and minor units.
func NewMoney(units, minor int64) Money {
	return Money(units*MinorUnitsPerUnit + minor)
}

// MoneyFromDecimal rounds a decimal amount of currency units half-up to minor units.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).Round(0).IntPart())
}

// MoneyFromDecimalFloor truncates toward negative infinity to minor units.
func MoneyFromDecimalFloor(d decimal.Decimal) Money {
	return Money(d.Shift(2).Floor().IntPart())
}

// ParseMoney parses a decimal string such as "490.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("invalid amount %q: more than 2 decimal places", s)
	}
	if !d.Shift(2).BigInt().IsInt64() {
		return 0, fmt.Errorf("invalid amount %q: out of range", s)
	}
	return MoneyFromDecimal(d), nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// MaxMoney returns the larger of a and b.
func MaxMoney(a, b Money) Money {
	if a > b {
		return a
	}
	return b
}

// MarshalJSON renders the amount as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Int64Value lets pgx encode Money as a BIGINT parameter.
func (m Money) Int64Value() (pgtype.Int8, error) {
	return pgtype.Int8{Int64: int64(m), Valid: true}, nil
}

// ScanInt64 lets pgx scan a BIGINT column into Money.
func (m *Money) ScanInt64(v pgtype.Int8) error {
	if !v.Valid {
		*m = 0
		return nil
	}
	*m = Money(v.Int64)
	return nil
}
