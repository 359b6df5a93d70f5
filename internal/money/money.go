/**
 * @description
 * Fixed-point monetary amounts for the projection engine. All balance math in
 * this service goes through this package so that two independent replays of
 * the same event sequence produce bit-identical results.
 *
 * @notes
 * - Amounts carry four fraction digits. Every arithmetic operation rounds to
 *   that scale immediately, not only at output. Summing a sequence therefore
 *   equals summing the individually-rounded terms, which is the contract the
 *   external cross-check projection relies on.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Arbitrary-precision decimal arithmetic.
 */

package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits every Amount is kept at.
const Scale = 4

// Amount is an immutable fixed-point monetary value.
type Amount struct {
	value decimal.Decimal
}

// Zero is the additive identity at the canonical scale.
var Zero = Amount{value: decimal.Zero}

// New builds an Amount from a float, rounding to the canonical scale.
func New(value float64) Amount {
	return Amount{value: decimal.NewFromFloat(value).Round(Scale)}
}

// FromDecimal builds an Amount from a raw decimal, rounding to the canonical scale.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{value: d.Round(Scale)}
}

// Parse builds an Amount from its string form.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{value: d.Round(Scale)}, nil
}

// MustParse is Parse for trusted literals (tests, defaults).
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount { return Amount{value: a.value.Add(b.value).Round(Scale)} }
func (a Amount) Sub(b Amount) Amount { return Amount{value: a.value.Sub(b.value).Round(Scale)} }

// Mul rounds the product back to the canonical scale before returning it.
func (a Amount) Mul(b Amount) Amount { return Amount{value: a.value.Mul(b.value).Round(Scale)} }

// Abs normalizes the sign; completed-transaction amounts arrive signed.
func (a Amount) Abs() Amount { return Amount{value: a.value.Abs()} }

func (a Amount) Neg() Amount        { return Amount{value: a.value.Neg()} }
func (a Amount) IsZero() bool       { return a.value.IsZero() }
func (a Amount) IsNegative() bool   { return a.value.IsNegative() }
func (a Amount) Equal(b Amount) bool {
	return a.value.Equal(b.value)
}

// String renders the amount with the full fixed scale (e.g. "100.0000").
func (a Amount) String() string {
	return a.value.StringFixed(Scale)
}

// MarshalJSON renders the amount as a JSON number at the fixed scale.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both numeric and quoted forms, rounding on entry.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	a.value = d.Round(Scale)
	return nil
}

// Value implements driver.Valuer so amounts bind as numeric parameters.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for numeric columns.
func (a *Amount) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	a.value = d.Round(Scale)
	return nil
}
