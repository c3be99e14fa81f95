package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condoflow/billing-engine/ledger"
	"github.com/condoflow/billing-engine/store/memory"
)

func testDebt(id, ownerID string, year int, month time.Month) *ledger.Debt {
	return &ledger.Debt{
		ID:        id,
		OwnerID:   ownerID,
		Property:  ledger.Property{Street: "calle-2", House: "15"},
		Period:    ledger.Period{Year: year, Month: month},
		AmountUSD: decimal.NewFromInt(25),
		Status:    ledger.DebtPending,
	}
}

func TestMemory_DebtSlotUniqueness(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.PutDebt(ctx, testDebt("d-1", "o-1", 2024, time.June)))

	err := store.PutDebt(ctx, testDebt("d-2", "o-1", 2024, time.June))
	assert.ErrorIs(t, err, ledger.ErrDuplicateDebt)
}

func TestMemory_ReadsAreCopies(t *testing.T) {
	// Mutating a value read from the store must not leak back in.

	store := memory.New()
	ctx := context.Background()

	owner := &ledger.Owner{
		ID:         "o-1",
		Name:       "Maria",
		Properties: []ledger.Property{{Street: "calle-2", House: "15"}},
	}
	require.NoError(t, store.PutOwner(ctx, owner))

	got, err := store.GetOwner(ctx, "o-1")
	require.NoError(t, err)
	got.Name = "mutated"
	got.Properties[0].Street = "mutated"

	fresh, err := store.GetOwner(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "Maria", fresh.Name)
	assert.Equal(t, "calle-2", fresh.Properties[0].Street)
}

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.PutOwner(ctx, &ledger.Owner{ID: "o-1", Name: "Maria"}))

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
	assert.True(t, got.Balance.IsZero())

	_, err = store.GetDebt(ctx, "d-1")
	assert.True(t, ledger.IsNotFound(err))
}

func TestMemory_LatestDebtPeriod(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	prop := ledger.Property{Street: "calle-2", House: "15"}

	_, ok, err := store.LatestDebtPeriod(ctx, "o-1", prop)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutDebt(ctx, testDebt("d-1", "o-1", 2024, time.March)))
	require.NoError(t, store.PutDebt(ctx, testDebt("d-2", "o-1", 2024, time.August)))

	latest, ok, err := store.LatestDebtPeriod(ctx, "o-1", prop)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ledger.Period{Year: 2024, Month: time.August}, latest)
}
