/*
Package settings provides read-only billing configuration.

PURPOSE:
  The orchestrators need two settings: the condo fee (USD face value of
  one monthly due) and the dated exchange-rate list. This package loads
  them from JSON so administrators can change fees and rates without
  code changes, and answers the two lookups the billing core needs:

  - applicable rate for date D: most recent rate with date <= D
  - active rate: the one flagged active, or the most recent if none

JSON SCHEMA:
  {
    "condo_fee_usd": "25",
    "exchange_rates": [
      {"date": "2024-01-01", "rate": "38.50"},
      {"date": "2024-03-15", "rate": "40.00", "active": true}
    ]
  }

  Amounts are JSON strings to keep decimal precision out of float64.

SEE ALSO:
  - billing/approve.go: resolves the rate for a payment's date
  - billing/sweep.go:   uses the active rate (no incoming payment date)
*/
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROVIDER - What the orchestrators consume
// =============================================================================

// Provider is the read-only settings surface the billing core depends on.
type Provider interface {
	// CondoFeeUSD returns the face value of one monthly due. Zero means
	// unconfigured.
	CondoFeeUSD() decimal.Decimal

	// RateFor returns the applicable exchange rate for a date: the most
	// recent rate whose date is <= d. ok is false when no rate applies.
	RateFor(d time.Time) (rate decimal.Decimal, ok bool)

	// ActiveRate returns the rate flagged active, or the most recent
	// rate if none is flagged. ok is false when no rates exist.
	ActiveRate() (rate decimal.Decimal, ok bool)
}

// =============================================================================
// STATIC PROVIDER - In-memory settings (tests, JSON file)
// =============================================================================

// ExchangeRate is one dated rate entry.
type ExchangeRate struct {
	Date   time.Time
	Rate   decimal.Decimal
	Active bool
}

// Static is an immutable Provider over an in-memory rate list.
type Static struct {
	fee   decimal.Decimal
	rates []ExchangeRate // sorted by date ascending
}

// NewStatic builds a provider. The rate list is copied and sorted by
// date ascending.
func NewStatic(feeUSD decimal.Decimal, rates []ExchangeRate) *Static {
	sorted := make([]ExchangeRate, len(rates))
	copy(sorted, rates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return &Static{fee: feeUSD, rates: sorted}
}

func (s *Static) CondoFeeUSD() decimal.Decimal { return s.fee }

func (s *Static) RateFor(d time.Time) (decimal.Decimal, bool) {
	for i := len(s.rates) - 1; i >= 0; i-- {
		if !s.rates[i].Date.After(d) {
			return s.rates[i].Rate, true
		}
	}
	return decimal.Zero, false
}

func (s *Static) ActiveRate() (decimal.Decimal, bool) {
	for i := len(s.rates) - 1; i >= 0; i-- {
		if s.rates[i].Active {
			return s.rates[i].Rate, true
		}
	}
	if len(s.rates) == 0 {
		return decimal.Zero, false
	}
	return s.rates[len(s.rates)-1].Rate, true
}

// =============================================================================
// JSON LOADING
// =============================================================================

type fileSchema struct {
	CondoFeeUSD   string     `json:"condo_fee_usd"`
	ExchangeRates []rateJSON `json:"exchange_rates"`
}

type rateJSON struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Rate   string `json:"rate"`
	Active bool   `json:"active,omitempty"`
}

// Parse builds a Static provider from JSON bytes.
func Parse(data []byte) (*Static, error) {
	var raw fileSchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("settings: invalid JSON: %w", err)
	}

	fee := decimal.Zero
	if raw.CondoFeeUSD != "" {
		var err error
		fee, err = decimal.NewFromString(raw.CondoFeeUSD)
		if err != nil {
			return nil, fmt.Errorf("settings: invalid condo_fee_usd %q: %w", raw.CondoFeeUSD, err)
		}
	}

	rates := make([]ExchangeRate, 0, len(raw.ExchangeRates))
	for _, r := range raw.ExchangeRates {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, fmt.Errorf("settings: invalid rate date %q: %w", r.Date, err)
		}
		rate, err := decimal.NewFromString(r.Rate)
		if err != nil {
			return nil, fmt.Errorf("settings: invalid rate %q: %w", r.Rate, err)
		}
		rates = append(rates, ExchangeRate{Date: date, Rate: rate, Active: r.Active})
	}

	return NewStatic(fee, rates), nil
}

// LoadFile reads and parses a settings JSON file.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	return Parse(data)
}
