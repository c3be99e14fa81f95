/*
store.go - Persistence interfaces for the billing ledger

PURPOSE:
  Defines the boundary between domain logic and the database: Store
  (record-level get/set/update/delete plus the queries the orchestrators
  need) and TxStore (the atomic read-modify-write primitive).

TRANSACTION CONTRACT:
  TxStore.WithTx executes fn against a transactional view of the store.
  Reads inside fn reflect a single consistent snapshot; writes become
  visible to other callers only on commit. If fn returns an error,
  nothing is written. A detected conflicting concurrent write surfaces
  as ErrConflict and the caller retries the whole operation.

SHARED-RESOURCE POLICY:
  Owner.Balance and Debt.Status are the shared mutable resources. All
  mutations of either MUST happen inside WithTx. Reading them outside a
  transaction is fine for reports; writing is not.

IMPLEMENTATIONS:
  - store/sqlite: production store (SQLite, WAL)
  - store/memory: in-memory store for tests and dev

SEE ALSO:
  - billing/: the only writers
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Record persistence and the queries the orchestrators need
// =============================================================================

type Store interface {
	// --- Owners ---

	// GetOwner returns the owner or a NotFoundError.
	GetOwner(ctx context.Context, id string) (*Owner, error)
	PutOwner(ctx context.Context, o *Owner) error
	// UpdateOwnerBalance overwrites the credit balance. Callers compute
	// the new value inside the same transaction they read the old one.
	UpdateOwnerBalance(ctx context.Context, id string, balance decimal.Decimal) error
	ListOwners(ctx context.Context) ([]*Owner, error)
	// ListOwnersWithCredit returns owners with Balance > 0, for the
	// reconciliation sweep.
	ListOwnersWithCredit(ctx context.Context) ([]*Owner, error)

	// --- Debts ---

	GetDebt(ctx context.Context, id string) (*Debt, error)
	// PutDebt creates a debt. Returns DuplicateDebtError if the
	// (owner, property, period) slot is occupied.
	PutDebt(ctx context.Context, d *Debt) error
	UpdateDebt(ctx context.Context, d *Debt) error
	DeleteDebt(ctx context.Context, id string) error
	// ListOutstandingDebts returns pending and overdue debts for an
	// owner, oldest period first.
	ListOutstandingDebts(ctx context.Context, ownerID string) ([]*Debt, error)
	// ListDebtsByPayment returns every debt settled or created by a
	// payment (for reversal).
	ListDebtsByPayment(ctx context.Context, paymentID string) ([]*Debt, error)
	// DebtExists checks occupancy of an (owner, property, period) slot.
	DebtExists(ctx context.Context, ownerID string, prop Property, period Period) (bool, error)
	// LatestDebtPeriod returns the most recent period for which the
	// owner has any debt record (paid or not) for a property.
	LatestDebtPeriod(ctx context.Context, ownerID string, prop Property) (Period, bool, error)

	// --- Payments ---

	GetPayment(ctx context.Context, id string) (*Payment, error)
	PutPayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, id string) error
	ListPayments(ctx context.Context, status PaymentStatus) ([]*Payment, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic read-modify-write
// =============================================================================

// TxStore wraps Store with the atomic transaction primitive every
// ledger mutation goes through.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. fn's Store view reads a
	// consistent snapshot; an error from fn rolls everything back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
