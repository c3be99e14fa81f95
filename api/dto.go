/*
dto.go - Request and response data structures

PURPOSE:
  JSON shapes for the REST API, separate from domain types so the wire
  format can evolve without touching the ledger.

CONVENTIONS:
  - Monetary amounts are JSON strings ("1500.00") to keep decimal
    precision out of float64.
  - Periods are "YYYY-MM", dates are "YYYY-MM-DD", timestamps RFC3339.
*/
package api

import (
	"time"

	"github.com/condoflow/billing-engine/ledger"
)

// =============================================================================
// OWNERS
// =============================================================================

type PropertyDTO struct {
	Street string `json:"street"`
	House  string `json:"house"`
}

type OwnerDTO struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Email      string        `json:"email,omitempty"`
	Role       string        `json:"role,omitempty"`
	Balance    string        `json:"balance"`
	Properties []PropertyDTO `json:"properties"`
	CreatedAt  string        `json:"created_at"`
}

type CreateOwnerRequest struct {
	ID         string        `json:"id,omitempty"`
	Name       string        `json:"name"`
	Email      string        `json:"email,omitempty"`
	Role       string        `json:"role,omitempty"`
	Properties []PropertyDTO `json:"properties"`
}

func ownerToDTO(o *ledger.Owner) OwnerDTO {
	props := make([]PropertyDTO, len(o.Properties))
	for i, p := range o.Properties {
		props[i] = PropertyDTO{Street: p.Street, House: p.House}
	}
	return OwnerDTO{
		ID:         o.ID,
		Name:       o.Name,
		Email:      o.Email,
		Role:       o.Role,
		Balance:    o.Balance.String(),
		Properties: props,
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// DEBTS
// =============================================================================

type DebtDTO struct {
	ID            string `json:"id"`
	OwnerID       string `json:"owner_id"`
	Street        string `json:"street,omitempty"`
	House         string `json:"house,omitempty"`
	Period        string `json:"period"`
	AmountUSD     string `json:"amount_usd"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status"`
	PaidAmountUSD string `json:"paid_amount_usd,omitempty"`
	PaymentDate   string `json:"payment_date,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`
	Advance       bool   `json:"advance,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func debtToDTO(d *ledger.Debt) DebtDTO {
	dto := DebtDTO{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Street:      d.Property.Street,
		House:       d.Property.House,
		Period:      d.Period.String(),
		AmountUSD:   d.AmountUSD.String(),
		Description: d.Description,
		Status:      string(d.Status),
		PaymentID:   d.PaymentID,
		Advance:     d.Advance,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
	}
	if !d.PaidAmountUSD.IsZero() {
		dto.PaidAmountUSD = d.PaidAmountUSD.String()
	}
	if !d.PaymentDate.IsZero() {
		dto.PaymentDate = d.PaymentDate.Format(time.RFC3339)
	}
	return dto
}

type MonthlyDebtsRequest struct {
	Period string `json:"period"` // "YYYY-MM"
}

type MonthlyDebtsResponse struct {
	Period       string `json:"period"`
	Created      int    `json:"created"`
	Skipped      int    `json:"skipped"`
	AutoSettled  int    `json:"auto_settled"`
	FailedOwners int    `json:"failed_owners"`
}

type MassDebtRequest struct {
	OwnerID     string `json:"owner_id"`
	Street      string `json:"street"`
	House       string `json:"house"`
	Description string `json:"description,omitempty"`
	AmountUSD   string `json:"amount_usd"`
	From        string `json:"from"` // "YYYY-MM"
	To          string `json:"to"`   // "YYYY-MM"
}

type MassDebtResponse struct {
	Created int `json:"created"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type BeneficiaryDTO struct {
	OwnerID   string `json:"owner_id"`
	OwnerName string `json:"owner_name,omitempty"`
	Street    string `json:"street,omitempty"`
	House     string `json:"house,omitempty"`
	Amount    string `json:"amount"`
}

type PaymentDTO struct {
	ID             string            `json:"id"`
	Beneficiaries  []BeneficiaryDTO  `json:"beneficiaries"`
	TotalAmount    string            `json:"total_amount"`
	ExchangeRate   string            `json:"exchange_rate,omitempty"`
	PaymentDate    string            `json:"payment_date"`
	ReportedAt     string            `json:"reported_at"`
	Method         string            `json:"method,omitempty"`
	Bank           string            `json:"bank,omitempty"`
	Reference      string            `json:"reference,omitempty"`
	Status         string            `json:"status"`
	ReceiptURL     string            `json:"receipt_url,omitempty"`
	Observations   string            `json:"observations,omitempty"`
	ReceiptNumbers map[string]string `json:"receipt_numbers,omitempty"`
}

func paymentToDTO(p *ledger.Payment) PaymentDTO {
	bens := make([]BeneficiaryDTO, len(p.Beneficiaries))
	for i, b := range p.Beneficiaries {
		bens[i] = BeneficiaryDTO{
			OwnerID:   b.OwnerID,
			OwnerName: b.OwnerName,
			Street:    b.Street,
			House:     b.House,
			Amount:    b.Amount.String(),
		}
	}
	dto := PaymentDTO{
		ID:             p.ID,
		Beneficiaries:  bens,
		TotalAmount:    p.TotalAmount.String(),
		PaymentDate:    p.PaymentDate.Format(time.RFC3339),
		ReportedAt:     p.ReportedAt.Format(time.RFC3339),
		Method:         p.Method,
		Bank:           p.Bank,
		Reference:      p.Reference,
		Status:         string(p.Status),
		ReceiptURL:     p.ReceiptURL,
		Observations:   p.Observations,
		ReceiptNumbers: p.ReceiptNumbers,
	}
	if !p.ExchangeRate.IsZero() {
		dto.ExchangeRate = p.ExchangeRate.String()
	}
	return dto
}

type ReportPaymentRequest struct {
	Beneficiaries []BeneficiaryDTO `json:"beneficiaries"`
	TotalAmount   string           `json:"total_amount"`
	PaymentDate   string           `json:"payment_date,omitempty"` // "YYYY-MM-DD"
	Method        string           `json:"method"`
	Bank          string           `json:"bank,omitempty"`
	Reference     string           `json:"reference,omitempty"`
	ReceiptURL    string           `json:"receipt_url,omitempty"`
	Observations  string           `json:"observations,omitempty"`
}

type ApprovePaymentRequest struct {
	Observations string `json:"observations,omitempty"`
}

type RejectPaymentRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type ReconcileResultDTO struct {
	OwnerID        string `json:"owner_id"`
	SettledDues    int    `json:"settled_dues"`
	PrepaidPeriods int    `json:"prepaid_periods"`
	ConsumedLocal  string `json:"consumed_local"`
	PaymentID      string `json:"payment_id,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
