package book

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is a quote-unit value expressed as an integer number of cents.
// All comparisons, map keys, and arithmetic in this package operate on
// this integer directly; decimal.Decimal is used only to convert an
// externally supplied floating-point price into exact cents.
type Price int64

// ParsePrice converts a JSON-boundary float64 price into exact cents,
// rounding half-even. float64 itself is never compared or stored past
// this call.
func ParsePrice(v float64) (Price, error) {
	d := decimal.NewFromFloat(v)
	cents := d.Mul(decimal.NewFromInt(100)).RoundBank(0)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("price %v does not resolve to an integer cent amount", v)
	}
	return Price(cents.IntPart()), nil
}

// String formats the price with exactly two fractional digits, matching
// the trade log's formatting rule.
func (p Price) String() string {
	sign := ""
	n := int64(p)
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
}
