// Package money holds fixed-point currency amounts.
//
// Amounts are counted in minor units (1.00 = 100). Decimal text is only
// produced or consumed at the edges: HTTP payloads, gateway calls, config.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits of a minor unit.
const Scale = 2

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNotNumeric    = fmt.Errorf("%w: not a number", ErrInvalidAmount)
	ErrOutOfBounds   = fmt.Errorf("%w: out of bounds", ErrInvalidAmount)
)

// Minor is an amount in minor units (cents).
type Minor int64

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// FromDecimal converts d to minor units, rounding down to the minor unit.
// d must lie within the Minor range; Parse checks that for text input.
func FromDecimal(d decimal.Decimal) Minor {
	return Minor(d.Shift(Scale).Floor().IntPart())
}

// Parse reads a decimal string such as "10", "0.5" or "13.50".
// More than two fractional digits are rejected rather than rounded.
func Parse(s string) (Minor, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, ErrNotNumeric
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}

	if d.Exponent() < -Scale && !d.Equal(d.Truncate(Scale)) {
		return 0, fmt.Errorf("%w: more than %d decimals", ErrInvalidAmount, Scale)
	}

	units := d.Shift(Scale).Floor()
	if units.GreaterThan(maxMinor) || units.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %q does not fit in minor units", ErrInvalidAmount, s)
	}

	return Minor(units.IntPart()), nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) Minor {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return m
}

// Decimal returns m as a decimal value.
func (m Minor) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

// String formats m with exactly two decimals.
func (m Minor) String() string {
	return m.Decimal().StringFixed(Scale)
}

func (m Minor) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Minor) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}

	*m = v

	return nil
}

// Bounds is an inclusive [Min, Max] range.
type Bounds struct {
	Min Minor
	Max Minor
}

// Check reports ErrOutOfBounds when m is outside b or not positive.
func (b Bounds) Check(m Minor) error {
	if m <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	if m < b.Min || m > b.Max {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrOutOfBounds, m, b.Min, b.Max)
	}

	return nil
}
