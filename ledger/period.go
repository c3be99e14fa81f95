package ledger

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// PERIOD - The (year, month) unit of obligation
// =============================================================================

// Period identifies one billing month. Debts exist per (owner, property,
// period); settlement order is always oldest period first.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing a date.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return PeriodOf(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Next returns the following month, rolling over the year.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Compare returns -1, 0, or 1 as p sorts before, equal to, or after o.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year != o.Year:
		if p.Year < o.Year {
			return -1
		}
		return 1
	case p.Month != o.Month:
		if p.Month < o.Month {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func (p Period) Before(o Period) bool { return p.Compare(o) < 0 }
func (p Period) After(o Period) bool  { return p.Compare(o) > 0 }

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// SortDebtsOldestFirst orders debts by period ascending, in place.
// Ties (same period across properties) keep property order stable.
func SortDebtsOldestFirst(debts []*Debt) {
	sort.SliceStable(debts, func(i, j int) bool {
		return debts[i].Period.Before(debts[j].Period)
	})
}
