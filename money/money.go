/*
Package money provides exact decimal arithmetic for currency amounts.

PURPOSE:
  All monetary values in the system flow through decimal.Decimal to avoid
  floating-point drift across repeated allocations. Two units circulate:
  the stable unit (USD, the face value of dues) and the local currency
  (Bs, what owners actually pay). Conversion between them always goes
  through an exchange rate and is rounded to cents.

KEY CONVENTIONS:
  - Comparisons between "money available" and "money required" happen at
    cent precision: both sides are rounded to 2 decimals first.
  - Division for whole-period counts truncates (you cannot prepay half
    a period).

SEE ALSO:
  - ledger/engine.go: the liquidation algorithm built on these helpers
*/
package money

import "github.com/shopspring/decimal"

// Cent is the rounding tolerance for a single settlement line.
var Cent = decimal.New(1, -2)

// Round2 rounds an amount to cent precision (2 decimal places).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromUSD converts a USD face value to local currency at the given rate,
// rounded to cents.
func FromUSD(usd, rate decimal.Decimal) decimal.Decimal {
	return Round2(usd.Mul(rate))
}

// Covers reports whether available funds cover a cost, comparing both
// sides at cent precision.
func Covers(available, cost decimal.Decimal) bool {
	return Round2(available).GreaterThanOrEqual(Round2(cost))
}

// WholeUnits returns how many whole units of size fit in available.
// Returns 0 when size is not positive.
func WholeUnits(available, size decimal.Decimal) int {
	if !size.IsPositive() {
		return 0
	}
	n := Round2(available).Div(size).IntPart()
	if n < 0 {
		return 0
	}
	return int(n)
}

// MustParse converts a decimal string, returning zero on malformed input.
// Used when reading amounts back from storage, where values were written
// by us and a parse failure means a corrupt row, not a user error.
func MustParse(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
