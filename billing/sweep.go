/*
sweep.go - Bulk reconciliation of credit balances against open dues

PURPOSE:
  Owners accumulate credit ("saldo a favor") from overpayments. The
  sweep consumes that credit against outstanding dues exactly as a
  payment approval would, with received = 0 and the active exchange
  rate. Each consumption is backed by a synthetic aprobado payment
  with the "conciliacion" method, so the audit trail and the reversal
  path work identically for swept settlements.

GRANULARITY:
  One transaction per owner. A failing owner is logged and skipped;
  the sweep never aborts wholesale.
*/
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condoflow/billing-engine/ledger"
)

// ReconcileResult summarizes one owner's sweep.
type ReconcileResult struct {
	OwnerID        string
	SettledDues    int
	PrepaidPeriods int
	ConsumedLocal  decimal.Decimal
	PaymentID      string // synthetic payment, empty when nothing happened
}

// ReconcileOwner consumes one owner's credit balance against their
// outstanding dues, creating a synthetic reconciliation payment when
// anything is settled or prepaid.
func (s *Service) ReconcileOwner(ctx context.Context, ownerID string) (*ReconcileResult, error) {
	rate, ok := s.settings.ActiveRate()
	if !ok || !rate.IsPositive() {
		return nil, &ledger.ConfigurationError{Setting: "exchangeRate", Reason: "no positive active rate"}
	}
	// An unconfigured fee only disables the prepay phase; settling open
	// dues needs the rate alone.
	fee := s.settings.CondoFeeUSD()

	result := &ReconcileResult{OwnerID: ownerID, ConsumedLocal: decimal.Zero}

	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		owner, err := st.GetOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if !owner.Balance.IsPositive() {
			return nil
		}

		now := s.now()
		paymentID := uuid.NewString()

		// The synthetic payment must exist before debts reference it.
		consumedPlaceholder := decimal.Zero
		payment := &ledger.Payment{
			ID: paymentID,
			Beneficiaries: []ledger.Beneficiary{{
				OwnerID:   owner.ID,
				OwnerName: owner.Name,
				Amount:    consumedPlaceholder,
			}},
			TotalAmount:  consumedPlaceholder,
			ExchangeRate: rate,
			PaymentDate:  now,
			ReportedAt:   now,
			Method:       ledger.MethodReconciliation,
			Status:       ledger.PaymentApproved,
			Observations: "Conciliación automática de saldo a favor",
			ReceiptNumbers: map[string]string{
				owner.ID: s.receipts.Next(now),
			},
		}
		if err := st.PutPayment(ctx, payment); err != nil {
			return err
		}

		settled, advances, err := s.liquidateFor(ctx, st, owner.ID, decimal.Zero, fee, rate, paymentID, now)
		if err != nil {
			return err
		}
		if settled == 0 && advances == 0 {
			// Credit covers nothing; drop the placeholder payment.
			return st.DeletePayment(ctx, paymentID)
		}

		after, err := st.GetOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		consumed := owner.Balance.Sub(after.Balance)

		payment.TotalAmount = consumed
		payment.Beneficiaries[0].Amount = consumed
		if err := st.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		result.SettledDues = settled
		result.PrepaidPeriods = advances
		result.ConsumedLocal = consumed
		result.PaymentID = paymentID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.PaymentID != "" {
		s.metrics.Reconciliations.Inc()
		s.metrics.DuesSettled.Add(float64(result.SettledDues))
		s.metrics.AdvancesCreated.Add(float64(result.PrepaidPeriods))
		s.log.Info("owner reconciled",
			"owner", ownerID,
			"settled_dues", result.SettledDues,
			"advances", result.PrepaidPeriods,
			"consumed", result.ConsumedLocal,
		)
	}
	return result, nil
}

// ReconcileAll sweeps every owner holding credit. Per-owner failures
// are logged and the sweep continues.
func (s *Service) ReconcileAll(ctx context.Context) ([]*ReconcileResult, error) {
	owners, err := s.store.ListOwnersWithCredit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners with credit: %w", err)
	}

	var results []*ReconcileResult
	for _, o := range owners {
		res, err := s.ReconcileOwner(ctx, o.ID)
		if err != nil {
			s.log.Warn("reconciliation failed for owner", "owner", o.ID, "error", err)
			continue
		}
		if res.PaymentID != "" {
			results = append(results, res)
		}
	}
	s.log.Info("reconciliation sweep finished",
		"candidates", len(owners),
		"reconciled", len(results),
	)
	return results, nil
}
