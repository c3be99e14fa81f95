/*
notify.go - Post-commit notification fan-out

PURPOSE:
  Payment approvals, rejections, and reversals notify the affected
  owners and the administrator. Delivery is fire-and-forget: failures
  are logged and never affect the committed ledger state.

DELIVERY CONTRACT:
  The service calls Notify strictly AFTER the store transaction commits.
  A Notifier must never be given a chance to veto a ledger mutation.
*/
package billing

import (
	"context"
	"log/slog"
)

// NotificationKind classifies what happened.
type NotificationKind string

const (
	NotifyPaymentApproved NotificationKind = "payment_approved"
	NotifyPaymentRejected NotificationKind = "payment_rejected"
	NotifyPaymentReversed NotificationKind = "payment_reversed"
)

// Notification is one message to one recipient.
type Notification struct {
	RecipientID string
	Kind        NotificationKind
	PaymentID   string
	Message     string
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. Default sink; real
// deployments plug in email or push delivery behind the same interface.
type LogNotifier struct {
	Log *slog.Logger
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notification",
		"recipient", n.RecipientID,
		"kind", string(n.Kind),
		"payment", n.PaymentID,
		"message", n.Message,
	)
	return nil
}
