/*
reverse.go - Payment deletion and reversal

PURPOSE:
  Deleting a pendiente or rechazado payment just removes the record.
  Deleting an aprobado payment reverses its ledger effects first, in
  one transaction:

    1. Debts settled by the payment return to pending (paid fields
       cleared). Advance debts it created are deleted outright.
    2. The credited surplus (total paid minus what settlement consumed,
       per owner) is withdrawn from the owner's balance, clamped at 0.
    3. The payment record is deleted.

CLAMP CAVEAT:
  If the credited surplus was already consumed by a later operation,
  clamping at 0 loses the difference. That case is logged as a warning
  with the unrecovered amount.
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/condoflow/billing-engine/ledger"
	"github.com/condoflow/billing-engine/money"
)

// DeletePayment removes a payment, reversing its ledger effects when it
// was approved.
func (s *Service) DeletePayment(ctx context.Context, paymentID string) error {
	var (
		reversed   bool
		recipients []string
	)

	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		p, err := st.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}

		if p.Status != ledger.PaymentApproved {
			// Never liquidated, nothing to unwind.
			return st.DeletePayment(ctx, p.ID)
		}

		debts, err := st.ListDebtsByPayment(ctx, p.ID)
		if err != nil {
			return err
		}

		// Local-currency value the payment consumed per owner, at the
		// rate frozen on the payment at approval time.
		consumed := make(map[string]decimal.Decimal)
		for _, d := range debts {
			if p.ExchangeRate.IsPositive() {
				cost := money.FromUSD(d.PaidAmountUSD, p.ExchangeRate)
				consumed[d.OwnerID] = consumed[d.OwnerID].Add(cost)
			}

			if d.Advance {
				if err := st.DeleteDebt(ctx, d.ID); err != nil {
					return err
				}
				continue
			}
			d.Status = ledger.DebtPending
			d.PaidAmountUSD = decimal.Zero
			d.PaymentDate = time.Time{}
			d.PaymentID = ""
			if err := st.UpdateDebt(ctx, d); err != nil {
				return err
			}
		}

		for _, b := range p.Beneficiaries {
			surplus := b.Amount.Sub(consumed[b.OwnerID])
			if !surplus.IsPositive() {
				continue
			}
			owner, err := st.GetOwner(ctx, b.OwnerID)
			if err != nil {
				return err
			}
			newBal := owner.Balance.Sub(surplus)
			if newBal.IsNegative() {
				s.log.Warn("reversal clamped balance at zero",
					"owner", owner.ID,
					"payment", p.ID,
					"unrecovered", newBal.Neg(),
				)
				newBal = decimal.Zero
			}
			if err := st.UpdateOwnerBalance(ctx, owner.ID, newBal); err != nil {
				return err
			}
		}

		if err := st.DeletePayment(ctx, p.ID); err != nil {
			return err
		}
		reversed = true
		recipients = beneficiaryOwnerIDs(p)
		return nil
	})
	if err != nil {
		return err
	}

	if reversed {
		s.metrics.PaymentsReversed.Inc()
		s.log.Info("payment reversed", "payment", paymentID)
		s.notifyAll(ctx, NotifyPaymentReversed, paymentID,
			fmt.Sprintf("Pago %s anulado y revertido", paymentID), recipients)
	} else {
		s.log.Info("payment deleted", "payment", paymentID)
	}
	return nil
}
