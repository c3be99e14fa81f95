/*
handlers.go - HTTP handlers for the billing engine

PURPOSE:
  Exposes the billing operations via REST. Handles HTTP request and
  response, JSON serialization, and delegates every decision to the
  billing service and the stores.

ENDPOINTS:
  Owners:
    GET    /api/owners                 List owners
    POST   /api/owners                 Register an owner
    GET    /api/owners/{id}            Owner detail
    GET    /api/owners/{id}/debts      Outstanding debts
    POST   /api/owners/{id}/reconcile  Reconcile this owner's credit

  Payments:
    GET    /api/payments               List payments (?status=)
    POST   /api/payments               Report a payment (pendiente)
    GET    /api/payments/{id}          Payment detail
    POST   /api/payments/{id}/approve  Approve and liquidate
    POST   /api/payments/{id}/reject   Reject with a reason
    DELETE /api/payments/{id}          Delete, reversing if approved

  Admin:
    POST   /api/reconcile              Sweep all credit holders
    POST   /api/debts/monthly          Generate a period's debts
    POST   /api/debts/mass             Generate a period range

ERROR HANDLING:
  Errors map to JSON with a status from the ledger error taxonomy:
  - 400: validation, missing configuration
  - 404: referenced record not found
  - 409: already processed, duplicate debt, concurrent conflict
  - 500: everything else

SEE ALSO:
  - dto.go: wire shapes
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condoflow/billing-engine/billing"
	"github.com/condoflow/billing-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	Service *billing.Service
	Store   ledger.TxStore
}

// NewHandler creates a handler over a billing service and its store.
func NewHandler(svc *billing.Service, store ledger.TxStore) *Handler {
	return &Handler{Service: svc, Store: store}
}

// =============================================================================
// OWNER HANDLERS
// =============================================================================

// ListOwners returns all registered owners.
func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.Store.ListOwners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list owners", err)
		return
	}
	dtos := make([]OwnerDTO, len(owners))
	for i, o := range owners {
		dtos[i] = ownerToDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetOwner returns one owner.
func (h *Handler) GetOwner(w http.ResponseWriter, r *http.Request) {
	o, err := h.Store.GetOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ownerToDTO(o))
}

// CreateOwner registers an owner with their properties.
func (h *Handler) CreateOwner(w http.ResponseWriter, r *http.Request) {
	var req CreateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	props := make([]ledger.Property, len(req.Properties))
	for i, p := range req.Properties {
		props[i] = ledger.Property{Street: p.Street, House: p.House}
	}
	owner := &ledger.Owner{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Balance:    decimal.Zero,
		Properties: props,
		CreatedAt:  time.Now().UTC(),
	}
	if owner.ID == "" {
		owner.ID = newID()
	}
	if err := h.Store.PutOwner(r.Context(), owner); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ownerToDTO(owner))
}

// ListOwnerDebts returns an owner's outstanding debts, oldest first.
func (h *Handler) ListOwnerDebts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetOwner(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	debts, err := h.Store.ListOutstandingDebts(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list debts", err)
		return
	}
	dtos := make([]DebtDTO, len(debts))
	for i, d := range debts {
		dtos[i] = debtToDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReconcileOwner consumes one owner's credit against their dues.
func (h *Handler) ReconcileOwner(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.ReconcileOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileToDTO(res))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns payments, optionally filtered by ?status=.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	status := ledger.PaymentStatus(r.URL.Query().Get("status"))
	payments, err := h.Store.ListPayments(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = paymentToDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPayment returns one payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentToDTO(p))
}

// ReportPayment records a reported payment as pendiente.
func (h *Handler) ReportPayment(w http.ResponseWriter, r *http.Request) {
	var req ReportPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_amount", err)
		return
	}
	bens := make([]ledger.Beneficiary, len(req.Beneficiaries))
	for i, b := range req.Beneficiaries {
		amount, err := decimal.NewFromString(b.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid beneficiary amount", err)
			return
		}
		bens[i] = ledger.Beneficiary{
			OwnerID:   b.OwnerID,
			OwnerName: b.OwnerName,
			Street:    b.Street,
			House:     b.House,
			Amount:    amount,
		}
	}

	payment := &ledger.Payment{
		Beneficiaries: bens,
		TotalAmount:   total,
		Method:        req.Method,
		Bank:          req.Bank,
		Reference:     req.Reference,
		ReceiptURL:    req.ReceiptURL,
		Observations:  req.Observations,
	}
	if req.PaymentDate != "" {
		d, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date, want YYYY-MM-DD", err)
			return
		}
		payment.PaymentDate = d
	}

	created, err := h.Service.ReportPayment(r.Context(), payment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentToDTO(created))
}

// ApprovePayment liquidates and finalizes a reported payment.
func (h *Handler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	var req ApprovePaymentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	p, err := h.Service.ApprovePayment(r.Context(), chi.URLParam(r, "id"), req.Observations)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentToDTO(p))
}

// RejectPayment marks a pending payment rechazado.
func (h *Handler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	var req RejectPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	p, err := h.Service.RejectPayment(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentToDTO(p))
}

// DeletePayment removes a payment, reversing it when approved.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeletePayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ReconcileAll sweeps every owner holding credit.
func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.ReconcileAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ReconcileResultDTO, len(results))
	for i, res := range results {
		dtos[i] = reconcileToDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GenerateMonthlyDebts creates the period's debt for every property.
func (h *Handler) GenerateMonthlyDebts(w http.ResponseWriter, r *http.Request) {
	var req MonthlyDebtsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := ledger.ParsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period, want YYYY-MM", err)
		return
	}
	res, err := h.Service.GenerateMonthlyDebts(r.Context(), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlyDebtsResponse{
		Period:       res.Period.String(),
		Created:      res.Created,
		Skipped:      res.Skipped,
		AutoSettled:  res.AutoSettled,
		FailedOwners: res.FailedOwners,
	})
}

// GenerateMassDebt creates a period range of debts for one property.
func (h *Handler) GenerateMassDebt(w http.ResponseWriter, r *http.Request) {
	var req MassDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.AmountUSD)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount_usd", err)
		return
	}
	from, err := ledger.ParsePeriod(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from period, want YYYY-MM", err)
		return
	}
	to, err := ledger.ParsePeriod(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to period, want YYYY-MM", err)
		return
	}

	created, err := h.Service.GenerateMassDebt(r.Context(),
		req.OwnerID,
		ledger.Property{Street: req.Street, House: req.House},
		req.Description, amount, from, to,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MassDebtResponse{Created: created})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func reconcileToDTO(res *billing.ReconcileResult) ReconcileResultDTO {
	return ReconcileResultDTO{
		OwnerID:        res.OwnerID,
		SettledDues:    res.SettledDues,
		PrepaidPeriods: res.PrepaidPeriods,
		ConsumedLocal:  res.ConsumedLocal.String(),
		PaymentID:      res.PaymentID,
	}
}

func newID() string { return uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the ledger error taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrConfiguration):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ledger.ErrAlreadyProcessed),
		errors.Is(err, ledger.ErrDuplicateDebt),
		errors.Is(err, ledger.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
