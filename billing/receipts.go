/*
receipts.go - Receipt-number generation

PURPOSE:
  Every (payment, beneficiary) pair gets a unique receipt number on
  approval. Numbers are generated once and stored on the payment;
  re-reading an approved payment never regenerates them.

FORMAT:
  "RC-" + ULID. ULIDs are sortable by generation time, which keeps
  receipt listings in chronological order for free.
*/
package billing

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReceiptNumberGenerator produces unique receipt numbers.
type ReceiptNumberGenerator interface {
	Next(t time.Time) string
}

// ULIDReceipts generates "RC-"-prefixed ULIDs with monotonic entropy so
// numbers issued within the same millisecond still sort in issue order.
type ULIDReceipts struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDReceipts() *ULIDReceipts {
	return &ULIDReceipts{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *ULIDReceipts) Next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return "RC-" + ulid.MustNew(ulid.Timestamp(t.UTC()), g.entropy).String()
}
