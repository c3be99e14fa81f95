/*
debts.go - Debt generation

PURPOSE:
  Two generators create the obligations the rest of the system settles:

  - GenerateMonthlyDebts: one pending debt per owner-property for a
    given period, at the configured condo fee. Idempotent: occupied
    (owner, property, period) slots are skipped. Owners holding enough
    credit get the fresh debt liquidated immediately, backed by a
    synthetic reconciliation payment, in the same transaction.

  - GenerateMassDebt: a period range of debts for one property, with a
    caller-supplied amount and description. Used to backfill history
    for newly registered owners.

GRANULARITY:
  Monthly generation runs one transaction per owner and continues past
  per-owner failures, mirroring the reconciliation sweep.
*/
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condoflow/billing-engine/ledger"
)

// GenerateResult summarizes a monthly generation run.
type GenerateResult struct {
	Period       ledger.Period
	Created      int // debts created
	Skipped      int // occupied slots left alone
	AutoSettled  int // fresh debts paid immediately from credit
	FailedOwners int
}

// =============================================================================
// MONTHLY GENERATION
// =============================================================================

// GenerateMonthlyDebts creates the period's pending debt for every
// owner-property that does not already have one, then liquidates
// against existing credit where it suffices.
func (s *Service) GenerateMonthlyDebts(ctx context.Context, period ledger.Period) (*GenerateResult, error) {
	if period.IsZero() {
		return nil, &ledger.ValidationError{Field: "period", Reason: "is required"}
	}
	fee := s.settings.CondoFeeUSD()
	if !fee.IsPositive() {
		return nil, &ledger.ConfigurationError{Setting: "condoFee", Reason: "is not configured"}
	}

	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}

	rate, rateOK := s.settings.ActiveRate()
	rateOK = rateOK && rate.IsPositive()

	result := &GenerateResult{Period: period}
	for _, owner := range owners {
		created, skipped, settledCount, err := s.generateForOwner(ctx, owner.ID, period, fee, rate, rateOK)
		if err != nil {
			s.log.Warn("monthly generation failed for owner", "owner", owner.ID, "error", err)
			result.FailedOwners++
			continue
		}
		result.Created += created
		result.Skipped += skipped
		result.AutoSettled += settledCount
	}

	s.metrics.DebtsGenerated.Add(float64(result.Created))
	s.log.Info("monthly debts generated",
		"period", period.String(),
		"created", result.Created,
		"skipped", result.Skipped,
		"auto_settled", result.AutoSettled,
		"failed_owners", result.FailedOwners,
	)
	return result, nil
}

func (s *Service) generateForOwner(
	ctx context.Context,
	ownerID string,
	period ledger.Period,
	fee, rate decimal.Decimal,
	rateOK bool,
) (created, skipped, settled int, err error) {
	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		owner, err := st.GetOwner(ctx, ownerID)
		if err != nil {
			return err
		}

		for _, prop := range owner.Properties {
			exists, err := st.DebtExists(ctx, owner.ID, prop, period)
			if err != nil {
				return err
			}
			if exists {
				skipped++
				continue
			}
			debt := &ledger.Debt{
				ID:          uuid.NewString(),
				OwnerID:     owner.ID,
				Property:    prop,
				Period:      period,
				AmountUSD:   fee,
				Description: fmt.Sprintf("Cuota %s", period),
				Status:      ledger.DebtPending,
				CreatedAt:   s.now(),
			}
			if err := st.PutDebt(ctx, debt); err != nil {
				return err
			}
			created++
		}

		if created == 0 || !rateOK || !owner.Balance.IsPositive() {
			return nil
		}

		// Credit on hand: settle what it covers right away, backed by
		// a synthetic reconciliation payment. FeeLocal is zero here so
		// generation never spawns advances of its own.
		now := s.now()
		paymentID := uuid.NewString()
		payment := &ledger.Payment{
			ID: paymentID,
			Beneficiaries: []ledger.Beneficiary{{
				OwnerID:   owner.ID,
				OwnerName: owner.Name,
				Amount:    decimal.Zero,
			}},
			TotalAmount:  decimal.Zero,
			ExchangeRate: rate,
			PaymentDate:  now,
			ReportedAt:   now,
			Method:       ledger.MethodReconciliation,
			Status:       ledger.PaymentApproved,
			Observations: fmt.Sprintf("Liquidación automática de cuota %s", period),
			ReceiptNumbers: map[string]string{
				owner.ID: s.receipts.Next(now),
			},
		}
		if err := st.PutPayment(ctx, payment); err != nil {
			return err
		}

		n, _, err := s.liquidateFor(ctx, st, owner.ID, decimal.Zero, decimal.Zero, rate, paymentID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return st.DeletePayment(ctx, paymentID)
		}

		after, err := st.GetOwner(ctx, owner.ID)
		if err != nil {
			return err
		}
		consumed := owner.Balance.Sub(after.Balance)
		payment.TotalAmount = consumed
		payment.Beneficiaries[0].Amount = consumed
		if err := st.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		settled = n
		return nil
	})
	return created, skipped, settled, err
}

// =============================================================================
// MASS GENERATION
// =============================================================================

// GenerateMassDebt creates one debt per period in [from, to] for a
// single owner property. Occupied slots are skipped. Returns the number
// of debts created.
func (s *Service) GenerateMassDebt(
	ctx context.Context,
	ownerID string,
	prop ledger.Property,
	description string,
	amountUSD decimal.Decimal,
	from, to ledger.Period,
) (int, error) {
	if !amountUSD.IsPositive() {
		return 0, &ledger.ValidationError{Field: "amountUSD", Reason: "must be positive"}
	}
	if from.IsZero() || to.IsZero() {
		return 0, &ledger.ValidationError{Field: "period", Reason: "from and to are required"}
	}
	if to.Before(from) {
		return 0, &ledger.ValidationError{Field: "period", Reason: "to precedes from"}
	}
	if prop.IsZero() {
		return 0, &ledger.ValidationError{Field: "property", Reason: "is required"}
	}

	created := 0
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		owner, err := st.GetOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		holds := false
		for _, p := range owner.Properties {
			if p == prop {
				holds = true
				break
			}
		}
		if !holds {
			return &ledger.ValidationError{
				Field:  "property",
				Reason: fmt.Sprintf("owner %s does not hold %s", owner.ID, prop),
			}
		}

		for period := from; !period.After(to); period = period.Next() {
			exists, err := st.DebtExists(ctx, owner.ID, prop, period)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			desc := description
			if desc == "" {
				desc = fmt.Sprintf("Cuota %s", period)
			}
			debt := &ledger.Debt{
				ID:          uuid.NewString(),
				OwnerID:     owner.ID,
				Property:    prop,
				Period:      period,
				AmountUSD:   amountUSD,
				Description: desc,
				Status:      ledger.DebtPending,
				CreatedAt:   s.now(),
			}
			if err := st.PutDebt(ctx, debt); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.DebtsGenerated.Add(float64(created))
	s.log.Info("mass debt generated",
		"owner", ownerID,
		"property", prop.String(),
		"from", from.String(),
		"to", to.String(),
		"created", created,
	)
	return created, nil
}
