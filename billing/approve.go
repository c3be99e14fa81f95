/*
approve.go - Payment approval and rejection

PURPOSE:
  ApprovePayment is the main liquidation entry point: inside one store
  transaction it runs the engine per beneficiary, settles dues, creates
  advance records for prepaid periods, updates credit balances, and
  finalizes the payment as aprobado.

PRECONDITIONS (checked inside the transaction):
  - payment exists and is not already aprobado
  - condo fee and the rate applicable to the payment date are positive,
    unless the payment uses the internal "adelanto" method
  - every beneficiary owner exists

ADVANCE DISTRIBUTION:
  Prepaid periods are assigned round-robin across the owner's
  properties in array order, each property advancing from its own
  latest recorded period (or the payment's period when it has none),
  skipping occupied slots. An owner with no properties keeps the
  prepay amount as credit instead.
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condoflow/billing-engine/ledger"
	"github.com/condoflow/billing-engine/money"
)

// =============================================================================
// APPROVE
// =============================================================================

// ApprovePayment liquidates a reported payment against its
// beneficiaries' dues and finalizes it as aprobado. observations, if
// non-empty, is appended to the payment.
func (s *Service) ApprovePayment(ctx context.Context, paymentID, observations string) (*ledger.Payment, error) {
	var (
		payment    *ledger.Payment
		settled    int
		advances   int
		recipients []string
	)

	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		p, err := st.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status == ledger.PaymentApproved {
			return &ledger.AlreadyProcessedError{PaymentID: p.ID, Status: p.Status}
		}

		// Internal advance-credit payments skip the configuration
		// preconditions: with no usable rate they bank everything as
		// credit.
		exempt := p.Method == ledger.MethodAdvance

		rate, rateOK := s.settings.RateFor(p.PaymentDate)
		rateOK = rateOK && rate.IsPositive()
		fee := s.settings.CondoFeeUSD()

		if !exempt {
			if !rateOK {
				return &ledger.ConfigurationError{
					Setting: "exchangeRate",
					Reason:  fmt.Sprintf("no positive rate applicable to %s", p.PaymentDate.Format("2006-01-02")),
				}
			}
			if !fee.IsPositive() {
				return &ledger.ConfigurationError{Setting: "condoFee", Reason: "is not configured"}
			}
		}

		// All beneficiary owners must exist before any mutation.
		for _, b := range p.Beneficiaries {
			if _, err := st.GetOwner(ctx, b.OwnerID); err != nil {
				return err
			}
		}

		if p.ReceiptNumbers == nil {
			p.ReceiptNumbers = make(map[string]string, len(p.Beneficiaries))
		}

		for _, b := range p.Beneficiaries {
			if !rateOK {
				// Exempt payment with no rate: everything becomes credit.
				// Read per share: the same owner may take several shares
				// of one payment and each must land on the latest balance.
				owner, err := st.GetOwner(ctx, b.OwnerID)
				if err != nil {
					return err
				}
				if err := st.UpdateOwnerBalance(ctx, owner.ID, owner.Balance.Add(b.Amount)); err != nil {
					return err
				}
			} else {
				n, a, err := s.liquidateFor(ctx, st, b.OwnerID, b.Amount, fee, rate, p.ID, p.PaymentDate)
				if err != nil {
					return err
				}
				settled += n
				advances += a
			}

			if _, ok := p.ReceiptNumbers[b.OwnerID]; !ok {
				p.ReceiptNumbers[b.OwnerID] = s.receipts.Next(s.now())
			}
		}

		p.Status = ledger.PaymentApproved
		if rateOK {
			p.ExchangeRate = rate
		}
		if observations != "" {
			p.Observations = appendObservation(p.Observations, observations)
		}
		if err := st.UpdatePayment(ctx, p); err != nil {
			return err
		}

		payment = p
		recipients = beneficiaryOwnerIDs(p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentsApproved.Inc()
	s.metrics.DuesSettled.Add(float64(settled))
	s.metrics.AdvancesCreated.Add(float64(advances))
	s.log.Info("payment approved",
		"payment", payment.ID,
		"settled_dues", settled,
		"advances", advances,
	)
	s.notifyAll(ctx, NotifyPaymentApproved, payment.ID,
		fmt.Sprintf("Pago %s aprobado por %s", payment.ID, payment.TotalAmount), recipients)
	return payment, nil
}

// liquidateFor runs the engine for one beneficiary and applies the
// result: settled dues marked paid, advances created, balance updated.
// Returns counts of settled dues and created advances.
func (s *Service) liquidateFor(
	ctx context.Context,
	st ledger.Store,
	ownerID string,
	received decimal.Decimal,
	feeUSD, rate decimal.Decimal,
	paymentID string,
	paymentDate time.Time,
) (settled, advances int, err error) {
	// Fresh read inside the transaction: when one owner appears in
	// several beneficiary shares of a payment, each run must start from
	// the balance and dues the previous run wrote.
	owner, err := st.GetOwner(ctx, ownerID)
	if err != nil {
		return 0, 0, err
	}
	open, err := st.ListOutstandingDebts(ctx, owner.ID)
	if err != nil {
		return 0, 0, err
	}

	dues := make([]ledger.PendingDue, len(open))
	byID := make(map[string]*ledger.Debt, len(open))
	for i, d := range open {
		dues[i] = ledger.PendingDue{ID: d.ID, AmountUSD: d.AmountUSD, Period: d.Period}
		byID[d.ID] = d
	}

	var feeLocal decimal.Decimal
	if feeUSD.IsPositive() {
		feeLocal = money.FromUSD(feeUSD, rate)
	}

	res := ledger.Liquidate(ledger.LiquidationInput{
		Received:    received,
		PriorCredit: owner.Balance,
		Dues:        dues,
		FeeLocal:    feeLocal,
		Rate:        rate,
	})

	for _, sd := range res.Settled {
		d := byID[sd.ID]
		d.Status = ledger.DebtPaid
		d.PaidAmountUSD = d.AmountUSD
		d.PaymentDate = paymentDate
		d.PaymentID = paymentID
		if err := st.UpdateDebt(ctx, d); err != nil {
			return 0, 0, err
		}
	}

	newCredit := res.NewCredit
	created, err := s.createAdvances(ctx, st, owner, res.PrepaidPeriods, feeUSD, feeLocal, paymentID, paymentDate)
	if err != nil {
		return 0, 0, err
	}
	if created < res.PrepaidPeriods {
		// Owner without properties: the prepay amount stays as credit.
		returned := feeLocal.Mul(decimal.NewFromInt(int64(res.PrepaidPeriods - created)))
		newCredit = newCredit.Add(returned)
		s.log.Warn("prepaid periods returned to credit",
			"owner", owner.ID, "periods", res.PrepaidPeriods-created, "amount", returned)
	}

	if err := st.UpdateOwnerBalance(ctx, owner.ID, newCredit); err != nil {
		return 0, 0, err
	}
	return len(res.Settled), created, nil
}

// createAdvances materializes prepaid periods as paid Advance debts,
// distributed round-robin over the owner's properties.
func (s *Service) createAdvances(
	ctx context.Context,
	st ledger.Store,
	owner *ledger.Owner,
	count int,
	feeUSD, feeLocal decimal.Decimal,
	paymentID string,
	paymentDate time.Time,
) (int, error) {
	if count == 0 || len(owner.Properties) == 0 {
		return 0, nil
	}

	// Per-property cursor: the latest period with any record, or the
	// payment's own period when the property has none.
	cursors := make([]ledger.Period, len(owner.Properties))
	for i, prop := range owner.Properties {
		latest, ok, err := st.LatestDebtPeriod(ctx, owner.ID, prop)
		if err != nil {
			return 0, err
		}
		if ok {
			cursors[i] = latest
		} else {
			cursors[i] = ledger.PeriodOf(paymentDate)
		}
	}

	created := 0
	for i := 0; i < count; i++ {
		slot := i % len(owner.Properties)
		prop := owner.Properties[slot]

		period := cursors[slot].Next()
		for {
			exists, err := st.DebtExists(ctx, owner.ID, prop, period)
			if err != nil {
				return created, err
			}
			if !exists {
				break
			}
			period = period.Next()
		}
		cursors[slot] = period

		debt := &ledger.Debt{
			ID:            uuid.NewString(),
			OwnerID:       owner.ID,
			Property:      prop,
			Period:        period,
			AmountUSD:     feeUSD,
			Description:   fmt.Sprintf("Cuota %s (Adelantado)", period),
			Status:        ledger.DebtPaid,
			PaidAmountUSD: feeUSD,
			PaymentDate:   paymentDate,
			PaymentID:     paymentID,
			Advance:       true,
			CreatedAt:     s.now(),
		}
		if err := st.PutDebt(ctx, debt); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// =============================================================================
// REJECT
// =============================================================================

// RejectPayment marks a pending payment rechazado. The reason is
// mandatory and stored in the observations. No ledger effect.
func (s *Service) RejectPayment(ctx context.Context, paymentID, reason string) (*ledger.Payment, error) {
	if reason == "" {
		return nil, &ledger.ValidationError{Field: "reason", Reason: "is required for rejection"}
	}

	var (
		payment    *ledger.Payment
		recipients []string
	)
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		p, err := st.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != ledger.PaymentPending {
			return &ledger.AlreadyProcessedError{PaymentID: p.ID, Status: p.Status}
		}
		p.Status = ledger.PaymentRejected
		p.Observations = appendObservation(p.Observations, reason)
		if err := st.UpdatePayment(ctx, p); err != nil {
			return err
		}
		payment = p
		recipients = beneficiaryOwnerIDs(p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentsRejected.Inc()
	s.log.Info("payment rejected", "payment", payment.ID, "reason", reason)
	s.notifyAll(ctx, NotifyPaymentRejected, payment.ID,
		fmt.Sprintf("Pago %s rechazado: %s", payment.ID, reason), recipients)
	return payment, nil
}

func appendObservation(existing, added string) string {
	if existing == "" {
		return added
	}
	return existing + " | " + added
}
