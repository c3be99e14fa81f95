package settings_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condoflow/billing-engine/settings"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParse(t *testing.T) {
	data := []byte(`{
		"condo_fee_usd": "25",
		"exchange_rates": [
			{"date": "2024-01-01", "rate": "38.50"},
			{"date": "2024-03-15", "rate": "40.00", "active": true}
		]
	}`)

	s, err := settings.Parse(data)
	require.NoError(t, err)
	assert.True(t, s.CondoFeeUSD().Equal(decimal.NewFromInt(25)))

	rate, ok := s.ActiveRate()
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(40)))
}

func TestParse_Invalid(t *testing.T) {
	_, err := settings.Parse([]byte(`{"condo_fee_usd": "abc"}`))
	assert.Error(t, err)

	_, err = settings.Parse([]byte(`{"exchange_rates": [{"date": "bad", "rate": "40"}]}`))
	assert.Error(t, err)
}

func TestRateFor(t *testing.T) {
	// GIVEN: Rates dated Jan 1 and Mar 15
	s := settings.NewStatic(decimal.NewFromInt(25), []settings.ExchangeRate{
		{Date: date("2024-03-15"), Rate: decimal.NewFromInt(40)},
		{Date: date("2024-01-01"), Rate: decimal.RequireFromString("38.50")},
	})

	// Before any rate: no applicable rate
	_, ok := s.RateFor(date("2023-12-31"))
	assert.False(t, ok)

	// Between the two: the older applies
	rate, ok := s.RateFor(date("2024-02-01"))
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.RequireFromString("38.50")))

	// On the boundary date itself the new rate applies
	rate, ok = s.RateFor(date("2024-03-15"))
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(40)))

	// After: the latest applies
	rate, ok = s.RateFor(date("2024-06-01"))
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(40)))
}

func TestActiveRate_FallsBackToMostRecent(t *testing.T) {
	// GIVEN: No rate flagged active
	s := settings.NewStatic(decimal.NewFromInt(25), []settings.ExchangeRate{
		{Date: date("2024-01-01"), Rate: decimal.NewFromInt(38)},
		{Date: date("2024-03-15"), Rate: decimal.NewFromInt(40)},
	})

	rate, ok := s.ActiveRate()
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(40)))

	// GIVEN: No rates at all
	empty := settings.NewStatic(decimal.NewFromInt(25), nil)
	_, ok = empty.ActiveRate()
	assert.False(t, ok)
}
