/*
Package ledger provides the core condominium billing engine.

PURPOSE:
  This package contains the domain types and the pure liquidation
  algorithm for applying received funds against outstanding per-property
  monthly dues. It has no I/O: persistence lives behind the Store
  interfaces (store.go) and orchestration lives in package billing.

KEY CONCEPTS IN THIS FILE (types.go):
  - Owner: identity + credit balance ("saldo a favor") + owned properties
  - Debt: one period's obligation for one property (a "due")
  - Payment: a reported or system-generated transaction with beneficiaries
  - Beneficiary: one owner's allocated share of a payment

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every monetary field, no floats
  2. Two units: Debt face values in USD, payments and balances in local
     currency, linked by a dated exchange rate
  3. No partial dues: a Debt is either fully pending or fully paid;
     partial funds accumulate as owner credit instead
  4. Auditability: every settled Debt back-references the Payment that
     funded it

SEE ALSO:
  - engine.go: the liquidation algorithm
  - store.go: persistence interfaces
  - errors.go: error taxonomy
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OWNER - Identity plus mutable credit balance
// =============================================================================

// Owner holds identity, the credit balance carried forward between
// payments, and the list of owned units.
//
// INVARIANT: Balance >= 0 at all times. Only the billing orchestrators
// mutate Balance, and only inside a store transaction.
type Owner struct {
	ID      string
	Name    string
	Email   string
	Role    string
	Balance decimal.Decimal // local currency, never negative

	// Properties is ordered; advance-payment distribution walks it in
	// array order (see billing/approve.go).
	Properties []Property

	CreatedAt time.Time
}

// Property identifies one unit an owner holds.
type Property struct {
	Street string
	House  string
}

func (p Property) String() string {
	return p.Street + "-" + p.House
}

// IsZero reports whether the property is unset (payments may carry a
// beneficiary with no property context).
func (p Property) IsZero() bool {
	return p.Street == "" && p.House == ""
}

// =============================================================================
// DEBT - One period's obligation for one property
// =============================================================================

type DebtStatus string

const (
	DebtPending DebtStatus = "pending"
	DebtPaid    DebtStatus = "paid"
	// DebtOverdue ("vencida") settles identically to pending; the
	// distinction is presentational.
	DebtOverdue DebtStatus = "vencida"
)

// Debt is one unit of obligation for one property for one (year, month)
// period.
//
// INVARIANT: at most one Debt per (OwnerID, Property, Period). Enforced
// by an existence check before creation inside the store transaction.
type Debt struct {
	ID          string
	OwnerID     string
	Property    Property
	Period      Period
	AmountUSD   decimal.Decimal
	Description string
	Status      DebtStatus

	// Set when paid, cleared on reversal.
	PaidAmountUSD decimal.Decimal
	PaymentDate   time.Time
	PaymentID     string

	// Advance marks a synthetic record created and immediately paid for
	// a future period ("adelantado"). Reversal deletes these outright
	// instead of restoring them to pending.
	Advance bool

	CreatedAt time.Time
}

// Outstanding reports whether the debt can still be settled.
func (d *Debt) Outstanding() bool {
	return d.Status == DebtPending || d.Status == DebtOverdue
}

// =============================================================================
// PAYMENT - A reported or system-generated transaction
// =============================================================================

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pendiente"
	PaymentApproved PaymentStatus = "aprobado"
	PaymentRejected PaymentStatus = "rechazado"
)

// Payment methods. Transfer and mobile payment come from the report
// flow; the remaining two are system-generated.
const (
	MethodTransfer      = "transferencia"
	MethodMobilePayment = "pago_movil"

	// MethodReconciliation marks payments synthesized by the bulk
	// reconciliation sweep and the debt generator ("conciliación").
	MethodReconciliation = "conciliacion"

	// MethodAdvance marks internal advance-credit payments, exempt from
	// the fee/rate configuration preconditions on approval.
	MethodAdvance = "adelanto"
)

// Beneficiary is one owner's allocated share of a payment's total.
type Beneficiary struct {
	OwnerID   string
	OwnerName string
	Street    string
	House     string
	Amount    decimal.Decimal // this owner's share, local currency
}

type Payment struct {
	ID            string
	Beneficiaries []Beneficiary
	TotalAmount   decimal.Decimal // local currency
	ExchangeRate  decimal.Decimal // local-per-USD at payment time
	PaymentDate   time.Time
	ReportedAt    time.Time
	Method        string
	Bank          string
	Reference     string
	Status        PaymentStatus
	ReceiptURL    string
	Observations  string

	// ReceiptNumbers maps ownerID -> generated receipt number, filled
	// on approval. Stable: never regenerated once stored.
	ReceiptNumbers map[string]string
}

// BeneficiaryFor returns the beneficiary entry for an owner, if present.
func (p *Payment) BeneficiaryFor(ownerID string) (Beneficiary, bool) {
	for _, b := range p.Beneficiaries {
		if b.OwnerID == ownerID {
			return b, true
		}
	}
	return Beneficiary{}, false
}

// ValidateBeneficiaries checks that beneficiary shares sum to the total
// amount (cent precision). Enforced at the report boundary, before any
// Payment record is created.
func (p *Payment) ValidateBeneficiaries() error {
	if len(p.Beneficiaries) == 0 {
		return &ValidationError{Field: "beneficiaries", Reason: "at least one beneficiary is required"}
	}
	sum := decimal.Zero
	for _, b := range p.Beneficiaries {
		if b.OwnerID == "" {
			return &ValidationError{Field: "beneficiaries", Reason: "beneficiary owner id is required"}
		}
		if b.Amount.IsNegative() {
			return &ValidationError{Field: "beneficiaries", Reason: fmt.Sprintf("negative amount for owner %s", b.OwnerID)}
		}
		sum = sum.Add(b.Amount)
	}
	if !sum.Round(2).Equal(p.TotalAmount.Round(2)) {
		return &ValidationError{
			Field:  "beneficiaries",
			Reason: fmt.Sprintf("shares sum to %s, total is %s", sum.Round(2), p.TotalAmount.Round(2)),
		}
	}
	return nil
}
