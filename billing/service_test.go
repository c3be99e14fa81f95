package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/condoflow/billing-engine/billing"
	"github.com/condoflow/billing-engine/ledger"
	"github.com/condoflow/billing-engine/settings"
	"github.com/condoflow/billing-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Fixed clock for deterministic periods: mid-June 2024.
var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

// testSettings: fee $25, rate 40 Bs/USD active since Jan 2024.
// One monthly due therefore costs 1000 Bs.
func testSettings() settings.Provider {
	return settings.NewStatic(decimal.NewFromInt(25), []settings.ExchangeRate{
		{Date: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), Rate: decimal.NewFromInt(40), Active: true},
	})
}

func newTestService(t *testing.T) (*billing.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := billing.NewService(store, testSettings(),
		billing.WithClock(func() time.Time { return testNow }),
	)
	return svc, store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func addOwner(t *testing.T, store *memory.Store, id string, balance decimal.Decimal, props ...ledger.Property) *ledger.Owner {
	t.Helper()
	owner := &ledger.Owner{
		ID:         id,
		Name:       "Owner " + id,
		Balance:    balance,
		Properties: props,
		CreatedAt:  testNow,
	}
	require.NoError(t, store.PutOwner(context.Background(), owner))
	return owner
}

func addPendingDebt(t *testing.T, store *memory.Store, id, ownerID string, prop ledger.Property, year int, month time.Month) *ledger.Debt {
	t.Helper()
	d := &ledger.Debt{
		ID:        id,
		OwnerID:   ownerID,
		Property:  prop,
		Period:    ledger.Period{Year: year, Month: month},
		AmountUSD: decimal.NewFromInt(25),
		Status:    ledger.DebtPending,
		CreatedAt: testNow,
	}
	require.NoError(t, store.PutDebt(context.Background(), d))
	return d
}

func addPendingPayment(t *testing.T, store *memory.Store, id, ownerID string, amount decimal.Decimal) *ledger.Payment {
	t.Helper()
	p := &ledger.Payment{
		ID: id,
		Beneficiaries: []ledger.Beneficiary{
			{OwnerID: ownerID, Amount: amount},
		},
		TotalAmount: amount,
		PaymentDate: testNow,
		ReportedAt:  testNow,
		Method:      ledger.MethodTransfer,
		Status:      ledger.PaymentPending,
	}
	require.NoError(t, store.PutPayment(context.Background(), p))
	return p
}

var propA = ledger.Property{Street: "calle-2", House: "15"}
var propB = ledger.Property{Street: "calle-7", House: "03"}

// =============================================================================
// REPORT
// =============================================================================

func TestReportPayment_ValidatesAndStoresPending(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	p, err := svc.ReportPayment(ctx, &ledger.Payment{
		Beneficiaries: []ledger.Beneficiary{{OwnerID: "o-1", Amount: dec("1200")}},
		TotalAmount:   dec("1200"),
		Method:        ledger.MethodTransfer,
		Bank:          "Banesco",
		Reference:     "00123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	stored, err := store.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.PaymentPending, stored.Status)
	require.Equal(t, testNow, stored.ReportedAt)
}

func TestReportPayment_RejectsMismatchedShares(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ReportPayment(context.Background(), &ledger.Payment{
		Beneficiaries: []ledger.Beneficiary{{OwnerID: "o-1", Amount: dec("700")}},
		TotalAmount:   dec("1200"),
		Method:        ledger.MethodTransfer,
	})
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestReportPayment_RejectsNonPositiveTotal(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ReportPayment(context.Background(), &ledger.Payment{
		Beneficiaries: []ledger.Beneficiary{{OwnerID: "o-1", Amount: decimal.Zero}},
		TotalAmount:   decimal.Zero,
		Method:        ledger.MethodTransfer,
	})
	require.ErrorIs(t, err, ledger.ErrValidation)
}
