// Package memory provides an in-memory ledger.TxStore for tests and dev.
//
// Transactions are simulated with a full snapshot before fn runs and a
// restore on error, under a single mutex. That gives the same
// all-or-nothing, isolated semantics the sqlite store provides, at the
// cost of serializing writers - fine for a test double.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/condoflow/billing-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu       sync.RWMutex
	owners   map[string]*ledger.Owner
	debts    map[string]*ledger.Debt
	payments map[string]*ledger.Payment
}

func New() *Store {
	return &Store{
		owners:   make(map[string]*ledger.Owner),
		debts:    make(map[string]*ledger.Debt),
		payments: make(map[string]*ledger.Payment),
	}
}

// =============================================================================
// OWNERS
// =============================================================================

func (s *Store) GetOwner(_ context.Context, id string) (*ledger.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOwnerLocked(id)
}

func (s *Store) getOwnerLocked(id string) (*ledger.Owner, error) {
	o, ok := s.owners[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "owner", ID: id}
	}
	cp := *o
	cp.Properties = append([]ledger.Property(nil), o.Properties...)
	return &cp, nil
}

func (s *Store) PutOwner(_ context.Context, o *ledger.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putOwnerLocked(o)
}

func (s *Store) putOwnerLocked(o *ledger.Owner) error {
	cp := *o
	cp.Properties = append([]ledger.Property(nil), o.Properties...)
	s.owners[o.ID] = &cp
	return nil
}

func (s *Store) UpdateOwnerBalance(_ context.Context, id string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateOwnerBalanceLocked(id, balance)
}

func (s *Store) updateOwnerBalanceLocked(id string, balance decimal.Decimal) error {
	o, ok := s.owners[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "owner", ID: id}
	}
	o.Balance = balance
	return nil
}

func (s *Store) ListOwners(_ context.Context) ([]*ledger.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOwnersLocked(false), nil
}

func (s *Store) ListOwnersWithCredit(_ context.Context) ([]*ledger.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOwnersLocked(true), nil
}

func (s *Store) listOwnersLocked(creditOnly bool) []*ledger.Owner {
	var out []*ledger.Owner
	for _, o := range s.owners {
		if creditOnly && !o.Balance.IsPositive() {
			continue
		}
		cp := *o
		cp.Properties = append([]ledger.Property(nil), o.Properties...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// DEBTS
// =============================================================================

func (s *Store) GetDebt(_ context.Context, id string) (*ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.debts[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "debt", ID: id}
	}
	cp := *d
	return &cp, nil
}

func (s *Store) PutDebt(_ context.Context, d *ledger.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putDebtLocked(d)
}

func (s *Store) putDebtLocked(d *ledger.Debt) error {
	for _, e := range s.debts {
		if e.OwnerID == d.OwnerID && e.Property == d.Property && e.Period == d.Period {
			return &ledger.DuplicateDebtError{OwnerID: d.OwnerID, Property: d.Property, Period: d.Period}
		}
	}
	cp := *d
	s.debts[d.ID] = &cp
	return nil
}

func (s *Store) UpdateDebt(_ context.Context, d *ledger.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateDebtLocked(d)
}

func (s *Store) updateDebtLocked(d *ledger.Debt) error {
	if _, ok := s.debts[d.ID]; !ok {
		return &ledger.NotFoundError{Kind: "debt", ID: d.ID}
	}
	cp := *d
	s.debts[d.ID] = &cp
	return nil
}

func (s *Store) DeleteDebt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debts[id]; !ok {
		return &ledger.NotFoundError{Kind: "debt", ID: id}
	}
	delete(s.debts, id)
	return nil
}

func (s *Store) ListOutstandingDebts(_ context.Context, ownerID string) ([]*ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOutstandingLocked(ownerID), nil
}

func (s *Store) listOutstandingLocked(ownerID string) []*ledger.Debt {
	var out []*ledger.Debt
	for _, d := range s.debts {
		if d.OwnerID == ownerID && d.Outstanding() {
			cp := *d
			out = append(out, &cp)
		}
	}
	sortDebts(out)
	return out
}

func (s *Store) ListDebtsByPayment(_ context.Context, paymentID string) ([]*ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ledger.Debt
	for _, d := range s.debts {
		if d.PaymentID == paymentID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sortDebts(out)
	return out, nil
}

func (s *Store) DebtExists(_ context.Context, ownerID string, prop ledger.Property, period ledger.Period) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.debts {
		if d.OwnerID == ownerID && d.Property == prop && d.Period == period {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) LatestDebtPeriod(_ context.Context, ownerID string, prop ledger.Property) (ledger.Period, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest ledger.Period
	found := false
	for _, d := range s.debts {
		if d.OwnerID != ownerID || d.Property != prop {
			continue
		}
		if !found || d.Period.After(latest) {
			latest = d.Period
			found = true
		}
	}
	return latest, found, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) GetPayment(_ context.Context, id string) (*ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "payment", ID: id}
	}
	return copyPayment(p), nil
}

func (s *Store) PutPayment(_ context.Context, p *ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = copyPayment(p)
	return nil
}

func (s *Store) UpdatePayment(_ context.Context, p *ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.ID]; !ok {
		return &ledger.NotFoundError{Kind: "payment", ID: p.ID}
	}
	s.payments[p.ID] = copyPayment(p)
	return nil
}

func (s *Store) DeletePayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[id]; !ok {
		return &ledger.NotFoundError{Kind: "payment", ID: id}
	}
	delete(s.payments, id)
	return nil
}

func (s *Store) ListPayments(_ context.Context, status ledger.PaymentStatus) ([]*ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ledger.Payment
	for _, p := range s.payments {
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, copyPayment(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// sortDebts orders by period ascending with a stable ID tie-break, so
// results do not depend on map iteration order.
func sortDebts(debts []*ledger.Debt) {
	sort.Slice(debts, func(i, j int) bool {
		if c := debts[i].Period.Compare(debts[j].Period); c != 0 {
			return c < 0
		}
		return debts[i].ID < debts[j].ID
	})
}

func copyPayment(p *ledger.Payment) *ledger.Payment {
	cp := *p
	cp.Beneficiaries = append([]ledger.Beneficiary(nil), p.Beneficiaries...)
	if p.ReceiptNumbers != nil {
		cp.ReceiptNumbers = make(map[string]string, len(p.ReceiptNumbers))
		for k, v := range p.ReceiptNumbers {
			cp.ReceiptNumbers[k] = v
		}
	}
	return &cp
}

// =============================================================================
// TRANSACTIONS - Snapshot plus rollback on error
// =============================================================================

// WithTx executes fn against a view that writes directly to the store,
// restoring a pre-transaction snapshot if fn fails.
func (s *Store) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	view := &txView{parent: s}
	if err := fn(view); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	owners   map[string]*ledger.Owner
	debts    map[string]*ledger.Debt
	payments map[string]*ledger.Payment
}

func (s *Store) snapshot() snapshot {
	owners := make(map[string]*ledger.Owner, len(s.owners))
	for k, v := range s.owners {
		cp := *v
		cp.Properties = append([]ledger.Property(nil), v.Properties...)
		owners[k] = &cp
	}
	debts := make(map[string]*ledger.Debt, len(s.debts))
	for k, v := range s.debts {
		cp := *v
		debts[k] = &cp
	}
	payments := make(map[string]*ledger.Payment, len(s.payments))
	for k, v := range s.payments {
		payments[k] = copyPayment(v)
	}
	return snapshot{owners: owners, debts: debts, payments: payments}
}

func (s *Store) restore(snap snapshot) {
	s.owners = snap.owners
	s.debts = snap.debts
	s.payments = snap.payments
}

// txView is the Store handed to WithTx callbacks. The parent mutex is
// already held, so it calls the *Locked helpers directly.
type txView struct {
	parent *Store
}

func (v *txView) GetOwner(_ context.Context, id string) (*ledger.Owner, error) {
	return v.parent.getOwnerLocked(id)
}

func (v *txView) PutOwner(_ context.Context, o *ledger.Owner) error {
	return v.parent.putOwnerLocked(o)
}

func (v *txView) UpdateOwnerBalance(_ context.Context, id string, balance decimal.Decimal) error {
	return v.parent.updateOwnerBalanceLocked(id, balance)
}

func (v *txView) ListOwners(_ context.Context) ([]*ledger.Owner, error) {
	return v.parent.listOwnersLocked(false), nil
}

func (v *txView) ListOwnersWithCredit(_ context.Context) ([]*ledger.Owner, error) {
	return v.parent.listOwnersLocked(true), nil
}

func (v *txView) GetDebt(_ context.Context, id string) (*ledger.Debt, error) {
	d, ok := v.parent.debts[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "debt", ID: id}
	}
	cp := *d
	return &cp, nil
}

func (v *txView) PutDebt(_ context.Context, d *ledger.Debt) error {
	return v.parent.putDebtLocked(d)
}

func (v *txView) UpdateDebt(_ context.Context, d *ledger.Debt) error {
	return v.parent.updateDebtLocked(d)
}

func (v *txView) DeleteDebt(_ context.Context, id string) error {
	if _, ok := v.parent.debts[id]; !ok {
		return &ledger.NotFoundError{Kind: "debt", ID: id}
	}
	delete(v.parent.debts, id)
	return nil
}

func (v *txView) ListOutstandingDebts(_ context.Context, ownerID string) ([]*ledger.Debt, error) {
	return v.parent.listOutstandingLocked(ownerID), nil
}

func (v *txView) ListDebtsByPayment(_ context.Context, paymentID string) ([]*ledger.Debt, error) {
	var out []*ledger.Debt
	for _, d := range v.parent.debts {
		if d.PaymentID == paymentID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sortDebts(out)
	return out, nil
}

func (v *txView) DebtExists(_ context.Context, ownerID string, prop ledger.Property, period ledger.Period) (bool, error) {
	for _, d := range v.parent.debts {
		if d.OwnerID == ownerID && d.Property == prop && d.Period == period {
			return true, nil
		}
	}
	return false, nil
}

func (v *txView) LatestDebtPeriod(_ context.Context, ownerID string, prop ledger.Property) (ledger.Period, bool, error) {
	var latest ledger.Period
	found := false
	for _, d := range v.parent.debts {
		if d.OwnerID != ownerID || d.Property != prop {
			continue
		}
		if !found || d.Period.After(latest) {
			latest = d.Period
			found = true
		}
	}
	return latest, found, nil
}

func (v *txView) GetPayment(_ context.Context, id string) (*ledger.Payment, error) {
	p, ok := v.parent.payments[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "payment", ID: id}
	}
	return copyPayment(p), nil
}

func (v *txView) PutPayment(_ context.Context, p *ledger.Payment) error {
	v.parent.payments[p.ID] = copyPayment(p)
	return nil
}

func (v *txView) UpdatePayment(_ context.Context, p *ledger.Payment) error {
	if _, ok := v.parent.payments[p.ID]; !ok {
		return &ledger.NotFoundError{Kind: "payment", ID: p.ID}
	}
	v.parent.payments[p.ID] = copyPayment(p)
	return nil
}

func (v *txView) DeletePayment(_ context.Context, id string) error {
	if _, ok := v.parent.payments[id]; !ok {
		return &ledger.NotFoundError{Kind: "payment", ID: id}
	}
	delete(v.parent.payments, id)
	return nil
}

func (v *txView) ListPayments(_ context.Context, status ledger.PaymentStatus) ([]*ledger.Payment, error) {
	var out []*ledger.Payment
	for _, p := range v.parent.payments {
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, copyPayment(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
