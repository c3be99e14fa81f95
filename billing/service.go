/*
Package billing orchestrates ledger mutations.

PURPOSE:
  The service layer between the HTTP API and the pure ledger core. Every
  state-changing operation runs inside one store transaction; the pure
  liquidation engine (ledger.Liquidate) makes the allocation decisions
  and this package applies them to the store.

OPERATIONS:
  - ReportPayment          record a pending payment (report boundary)
  - ApprovePayment         liquidate and finalize a reported payment
  - RejectPayment          mark a payment rejected, no ledger effect
  - DeletePayment          reverse an approved payment, or drop a record
  - ReconcileOwner / ReconcileAll   consume credit against open dues
  - GenerateMonthlyDebts / GenerateMassDebt   create obligations

SIDE EFFECTS:
  Notifications and metrics fire strictly after commit. A failed
  notification is logged, never propagated.

SEE ALSO:
  - ledger/engine.go: the allocation algorithm
  - api/:             HTTP surface over these operations
*/
package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/condoflow/billing-engine/ledger"
	"github.com/condoflow/billing-engine/settings"
)

// Service is the billing orchestrator. Construct with NewService.
type Service struct {
	store    ledger.TxStore
	settings settings.Provider
	receipts ReceiptNumberGenerator
	notifier Notifier
	metrics  *Metrics
	log      *slog.Logger
	now      func() time.Time

	// adminID receives a copy of every notification. Configuration,
	// empty disables the admin copy.
	adminID string
}

// Option customizes a Service.
type Option func(*Service)

func WithReceipts(g ReceiptNumberGenerator) Option { return func(s *Service) { s.receipts = g } }
func WithNotifier(n Notifier) Option               { return func(s *Service) { s.notifier = n } }
func WithMetrics(m *Metrics) Option                { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option             { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option        { return func(s *Service) { s.now = now } }
func WithAdminRecipient(id string) Option          { return func(s *Service) { s.adminID = id } }

// NewService wires a Service with working defaults: ULID receipts, a
// log-only notifier, unregistered metrics, slog.Default, wall clock.
func NewService(store ledger.TxStore, provider settings.Provider, opts ...Option) *Service {
	s := &Service{
		store:    store,
		settings: provider,
		receipts: NewULIDReceipts(),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = &LogNotifier{Log: s.log}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// =============================================================================
// REPORT - Record a pending payment
// =============================================================================

// ReportPayment validates and stores a reported payment as pendiente.
// No ledger effect until approval.
func (s *Service) ReportPayment(ctx context.Context, p *ledger.Payment) (*ledger.Payment, error) {
	if !p.TotalAmount.IsPositive() {
		return nil, &ledger.ValidationError{Field: "totalAmount", Reason: "must be positive"}
	}
	if p.Method == "" {
		return nil, &ledger.ValidationError{Field: "method", Reason: "is required"}
	}
	if err := p.ValidateBeneficiaries(); err != nil {
		return nil, err
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = ledger.PaymentPending
	p.ReportedAt = s.now()
	if p.PaymentDate.IsZero() {
		p.PaymentDate = p.ReportedAt
	}

	if err := s.store.PutPayment(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("payment reported",
		"payment", p.ID,
		"amount", p.TotalAmount,
		"beneficiaries", len(p.Beneficiaries),
	)
	return p, nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// notifyAll fans a notification out to each recipient plus the admin
// copy. Best-effort: failures are logged.
func (s *Service) notifyAll(ctx context.Context, kind NotificationKind, paymentID, message string, recipientIDs []string) {
	seen := make(map[string]bool, len(recipientIDs)+1)
	targets := make([]string, 0, len(recipientIDs)+1)
	for _, id := range recipientIDs {
		if id != "" && !seen[id] {
			seen[id] = true
			targets = append(targets, id)
		}
	}
	if s.adminID != "" && !seen[s.adminID] {
		targets = append(targets, s.adminID)
	}
	for _, id := range targets {
		n := Notification{RecipientID: id, Kind: kind, PaymentID: paymentID, Message: message}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Warn("notification delivery failed",
				"recipient", id, "kind", string(kind), "payment", paymentID, "error", err)
		}
	}
}

func beneficiaryOwnerIDs(p *ledger.Payment) []string {
	ids := make([]string, 0, len(p.Beneficiaries))
	for _, b := range p.Beneficiaries {
		ids = append(ids, b.OwnerID)
	}
	return ids
}
