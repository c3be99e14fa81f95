package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condoflow/billing-engine/ledger"
	"github.com/condoflow/billing-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testOwner(id string) *ledger.Owner {
	return &ledger.Owner{
		ID:      id,
		Name:    "Maria Perez",
		Email:   "maria@example.com",
		Balance: decimal.Zero,
		Properties: []ledger.Property{
			{Street: "calle-2", House: "15"},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func testDebt(id, ownerID string, year int, month time.Month) *ledger.Debt {
	return &ledger.Debt{
		ID:        id,
		OwnerID:   ownerID,
		Property:  ledger.Property{Street: "calle-2", House: "15"},
		Period:    ledger.Period{Year: year, Month: month},
		AmountUSD: decimal.NewFromInt(25),
		Status:    ledger.DebtPending,
		CreatedAt: time.Now().UTC(),
	}
}

// =============================================================================
// OWNERS
// =============================================================================

func TestStore_OwnerRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner := testOwner("o-1")
	owner.Balance = decimal.RequireFromString("123.45")
	require.NoError(t, store.PutOwner(ctx, owner))

	got, err := store.GetOwner(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "Maria Perez", got.Name)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("123.45")))
	require.Len(t, got.Properties, 1)
	assert.Equal(t, "calle-2", got.Properties[0].Street)
}

func TestStore_GetOwner_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetOwner(context.Background(), "missing")
	assert.True(t, ledger.IsNotFound(err))

	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "owner", nf.Kind)
}

func TestStore_UpdateOwnerBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutOwner(ctx, testOwner("o-1")))
	require.NoError(t, store.UpdateOwnerBalance(ctx, "o-1", decimal.NewFromInt(500)))

	got, err := store.GetOwner(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(500)))

	err = store.UpdateOwnerBalance(ctx, "missing", decimal.NewFromInt(1))
	assert.True(t, ledger.IsNotFound(err))
}

func TestStore_ListOwnersWithCredit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	broke := testOwner("o-broke")
	rich := testOwner("o-rich")
	rich.Balance = decimal.NewFromInt(900)
	require.NoError(t, store.PutOwner(ctx, broke))
	require.NoError(t, store.PutOwner(ctx, rich))

	withCredit, err := store.ListOwnersWithCredit(ctx)
	require.NoError(t, err)
	require.Len(t, withCredit, 1)
	assert.Equal(t, "o-rich", withCredit[0].ID)

	all, err := store.ListOwners(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// DEBTS
// =============================================================================

func TestStore_DebtSlotUniqueness(t *testing.T) {
	// GIVEN: A debt for (o-1, calle-2/15, 2024-06)
	// WHEN:  Inserting another debt for the same slot
	// THEN:  DuplicateDebtError

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutDebt(ctx, testDebt("d-1", "o-1", 2024, time.June)))

	err := store.PutDebt(ctx, testDebt("d-2", "o-1", 2024, time.June))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrDuplicateDebt)

	// A different period is fine.
	assert.NoError(t, store.PutDebt(ctx, testDebt("d-3", "o-1", 2024, time.July)))
}

func TestStore_ListOutstandingDebts_OldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutDebt(ctx, testDebt("d-mar", "o-1", 2024, time.March)))
	require.NoError(t, store.PutDebt(ctx, testDebt("d-jan", "o-1", 2024, time.January)))

	paid := testDebt("d-feb", "o-1", 2024, time.February)
	paid.Status = ledger.DebtPaid
	paid.PaidAmountUSD = decimal.NewFromInt(25)
	paid.PaymentID = "p-1"
	require.NoError(t, store.PutDebt(ctx, paid))

	overdue := testDebt("d-apr", "o-1", 2024, time.April)
	overdue.Status = ledger.DebtOverdue
	require.NoError(t, store.PutDebt(ctx, overdue))

	debts, err := store.ListOutstandingDebts(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, debts, 3, "paid debt must be excluded")
	assert.Equal(t, "d-jan", debts[0].ID)
	assert.Equal(t, "d-mar", debts[1].ID)
	assert.Equal(t, "d-apr", debts[2].ID)
}

func TestStore_DebtPaidFieldsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := testDebt("d-1", "o-1", 2024, time.June)
	require.NoError(t, store.PutDebt(ctx, d))

	d.Status = ledger.DebtPaid
	d.PaidAmountUSD = decimal.NewFromInt(25)
	d.PaymentDate = time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	d.PaymentID = "p-1"
	d.Advance = true
	require.NoError(t, store.UpdateDebt(ctx, d))

	got, err := store.GetDebt(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.DebtPaid, got.Status)
	assert.True(t, got.PaidAmountUSD.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, "p-1", got.PaymentID)
	assert.True(t, got.Advance)

	byPayment, err := store.ListDebtsByPayment(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, byPayment, 1)
	assert.Equal(t, "d-1", byPayment[0].ID)
}

func TestStore_DebtExistsAndLatestPeriod(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	prop := ledger.Property{Street: "calle-2", House: "15"}

	_, ok, err := store.LatestDebtPeriod(ctx, "o-1", prop)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutDebt(ctx, testDebt("d-1", "o-1", 2024, time.June)))
	require.NoError(t, store.PutDebt(ctx, testDebt("d-2", "o-1", 2024, time.September)))

	exists, err := store.DebtExists(ctx, "o-1", prop, ledger.Period{Year: 2024, Month: time.June})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.DebtExists(ctx, "o-1", prop, ledger.Period{Year: 2024, Month: time.July})
	require.NoError(t, err)
	assert.False(t, exists)

	latest, ok, err := store.LatestDebtPeriod(ctx, "o-1", prop)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ledger.Period{Year: 2024, Month: time.September}, latest)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestStore_PaymentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &ledger.Payment{
		ID: "p-1",
		Beneficiaries: []ledger.Beneficiary{
			{OwnerID: "o-1", OwnerName: "Maria", Street: "calle-2", House: "15", Amount: decimal.NewFromInt(1200)},
		},
		TotalAmount:  decimal.NewFromInt(1200),
		ExchangeRate: decimal.NewFromInt(40),
		PaymentDate:  time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC),
		ReportedAt:   time.Date(2024, time.June, 11, 0, 0, 0, 0, time.UTC),
		Method:       ledger.MethodTransfer,
		Bank:         "Banesco",
		Reference:    "00123456",
		Status:       ledger.PaymentPending,
	}
	require.NoError(t, store.PutPayment(ctx, p))

	got, err := store.GetPayment(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentPending, got.Status)
	assert.Equal(t, "Banesco", got.Bank)
	require.Len(t, got.Beneficiaries, 1)
	assert.True(t, got.Beneficiaries[0].Amount.Equal(decimal.NewFromInt(1200)))

	got.Status = ledger.PaymentApproved
	got.ReceiptNumbers = map[string]string{"o-1": "RC-001"}
	require.NoError(t, store.UpdatePayment(ctx, got))

	approved, err := store.ListPayments(ctx, ledger.PaymentApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "RC-001", approved[0].ReceiptNumbers["o-1"])

	require.NoError(t, store.DeletePayment(ctx, "p-1"))
	_, err = store.GetPayment(ctx, "p-1")
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: An owner with balance 0
	// WHEN:  A transaction updates the balance then fails
	// THEN:  The balance update is rolled back

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutOwner(ctx, testOwner("o-1")))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(st ledger.Store) error {
		if err := st.UpdateOwnerBalance(ctx, "o-1", decimal.NewFromInt(999)); err != nil {
			return err
		}
		if err := st.PutDebt(ctx, testDebt("d-1", "o-1", 2024, time.June)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetOwner(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero(), "balance must roll back")

	_, err = store.GetDebt(ctx, "d-1")
	assert.True(t, ledger.IsNotFound(err), "debt insert must roll back")
}

func TestStore_WithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutOwner(ctx, testOwner("o-1")))

	err := store.WithTx(ctx, func(st ledger.Store) error {
		return st.UpdateOwnerBalance(ctx, "o-1", decimal.NewFromInt(250))
	})
	require.NoError(t, err)

	got, err := store.GetOwner(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(250)))
}
