/*
engine.go - The payment-liquidation algorithm

PURPOSE:
  Pure, deterministic allocation of received funds against an owner's
  outstanding dues. No I/O: callers load state inside a store
  transaction, run Liquidate, and write back the result.

ALGORITHM:
  1. available = received + prior credit
  2. Settle dues oldest-period-first, each at its full face value
     converted to local currency. A due is never partially settled:
     if available funds fall short, the due stays pending and
     settlement stops.
  3. If the monthly fee is known (> 0), prepay as many whole future
     periods as the remainder covers.
  4. Whatever is left becomes the owner's new credit balance.

CONSERVATION INVARIANT:
  received + priorCredit ==
      sum(settled local amounts) + prepaidPeriods*feeLocal + newCredit
  within cent-level rounding tolerance per line item.

COMPARISON POLICY:
  All "can afford" comparisons round both sides to 2 decimals first, so
  a due costing 1000.004999 Bs is settled by 1000.00 Bs available.

SEE ALSO:
  - billing/approve.go: runs this per beneficiary inside a transaction
  - billing/sweep.go:   runs this with received = 0 ("conciliación")
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/condoflow/billing-engine/money"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// PendingDue is one outstanding obligation as seen by the engine.
type PendingDue struct {
	ID        string
	AmountUSD decimal.Decimal
	Period    Period
}

// LiquidationInput carries everything the engine needs. All amounts are
// local currency unless the name says USD.
type LiquidationInput struct {
	// Received is the money just arriving (0 for a reconciliation run).
	Received decimal.Decimal

	// PriorCredit is the owner's existing balance ("saldo a favor").
	PriorCredit decimal.Decimal

	// Dues are the owner's outstanding obligations. Order does not
	// matter; the engine sorts oldest-first itself.
	Dues []PendingDue

	// FeeLocal is one monthly due converted to local currency. Zero
	// disables advance-payment logic (fee unknown).
	FeeLocal decimal.Decimal

	// Rate converts USD face values to local currency. Must be > 0 for
	// any due to be settled.
	Rate decimal.Decimal
}

// SettledDue records one due paid in full.
type SettledDue struct {
	ID          string
	AmountUSD   decimal.Decimal
	AmountLocal decimal.Decimal
}

// LiquidationResult is the engine's decision. Callers apply it to the
// store; the engine itself mutates nothing.
type LiquidationResult struct {
	Settled        []SettledDue
	PrepaidPeriods int
	NewCredit      decimal.Decimal
}

// TotalSettledLocal sums the local-currency cost of all settled dues.
func (r LiquidationResult) TotalSettledLocal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Settled {
		total = total.Add(s.AmountLocal)
	}
	return total
}

// =============================================================================
// LIQUIDATE - The core allocation function
// =============================================================================

// Liquidate allocates available funds against dues oldest-first, then
// prepays whole future periods, then banks the remainder as credit.
func Liquidate(in LiquidationInput) LiquidationResult {
	available := in.Received.Add(in.PriorCredit)

	dues := make([]PendingDue, len(in.Dues))
	copy(dues, in.Dues)
	sortDuesOldestFirst(dues)

	var settled []SettledDue
	if in.Rate.IsPositive() {
		for _, due := range dues {
			cost := money.FromUSD(due.AmountUSD, in.Rate)
			if !money.Covers(available, cost) {
				// No partial settlement: stop at the first due the
				// funds cannot cover in full.
				break
			}
			available = available.Sub(cost)
			settled = append(settled, SettledDue{
				ID:          due.ID,
				AmountUSD:   due.AmountUSD,
				AmountLocal: cost,
			})
		}
	}

	prepaid := 0
	if in.FeeLocal.IsPositive() && money.Covers(available, in.FeeLocal) {
		prepaid = money.WholeUnits(available, in.FeeLocal)
		available = available.Sub(in.FeeLocal.Mul(decimal.NewFromInt(int64(prepaid))))
	}

	return LiquidationResult{
		Settled:        settled,
		PrepaidPeriods: prepaid,
		NewCredit:      money.Round2(available),
	}
}

func sortDuesOldestFirst(dues []PendingDue) {
	sort.SliceStable(dues, func(i, j int) bool {
		return dues[i].Period.Before(dues[j].Period)
	})
}
