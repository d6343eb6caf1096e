package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a currency-agnostic amount held in minor units (cents).
// Sums are computed on the integer value so they never drift.
type Money struct {
	Cents int64
}

// maxUnits keeps Cents within int64 after scaling by 100.
var (
	maxUnits = decimal.NewFromInt((1<<63 - 1) / 100)
	hundred  = decimal.NewFromInt(100)
)

func NewMoney(cents int64) Money { return Money{Cents: cents} }

// MoneyFromDecimal converts a decimal amount to cents, rounding half away from zero.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}
}

// ParseMoney reads a user supplied amount such as "12.34" or "12,34".
//
// Only plain non-negative decimals are accepted: no sign, no exponent, at most one separator.
// Digits beyond the second decimal are rounded half-up, so "1.005" becomes 101 cents.
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	if s == "." {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.GreaterThan(maxUnits) {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d), nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money        { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money        { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Mul(n int64) Money        { return Money{Cents: m.Cents * n} }
func (m Money) IsNegative() bool         { return m.Cents < 0 }
func (m Money) IsZero() bool             { return m.Cents == 0 }
func (m Money) LessThan(o Money) bool    { return m.Cents < o.Cents }
func (m Money) Decimal() decimal.Decimal { return decimal.New(m.Cents, -2) }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// String renders the amount with exactly two decimals, e.g. "-10.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.Abs().GreaterThan(maxUnits) {
		return fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	*m = MoneyFromDecimal(d)
	return nil
}
